package parser

import "github.com/okian/ffnsync/internal/domain/model"

type recordGroup struct {
	key     model.RecordKey
	records []model.ParsedRecord
}

// groupByKey buckets records by (event, pool) keeping first-seen key order.
func groupByKey(records []model.ParsedRecord) []recordGroup {
	index := make(map[model.RecordKey]int, len(records))
	groups := make([]recordGroup, 0, len(records))
	for _, rec := range records {
		key := rec.Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, recordGroup{key: key})
		}
		groups[i].records = append(groups[i].records, rec)
	}
	return groups
}

// fastest returns the record with the smallest time. Ties keep the earliest.
func fastest(records []model.ParsedRecord) model.ParsedRecord {
	best := records[0]
	for _, rec := range records[1:] {
		if rec.TimeSeconds < best.TimeSeconds {
			best = rec
		}
	}
	return best
}

// BestPerKey keeps only the fastest record for each (event, pool) pair.
// Output order follows the first occurrence of each key in the input.
func BestPerKey(records []model.ParsedRecord) []model.ParsedRecord {
	groups := groupByKey(records)
	out := make([]model.ParsedRecord, 0, len(groups))
	for _, g := range groups {
		out = append(out, fastest(g.records))
	}
	return out
}
