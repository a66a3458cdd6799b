// Package parser extracts personal-best swim records from FFN athlete
// results pages.
//
// The page is treated as text rather than a DOM. It is cut into sections at
// every "Bassin : 25 m" / "Bassin : 50 m" marker, table rows are pulled out
// of each section, and every row whose second cell holds a swim time becomes
// a record for the section's pool length. Records are then reduced to the
// fastest time per (event, pool length).
//
// Malformed markup never fails a parse; it only yields fewer records.
package parser

import (
	"context"
	"regexp"
	"strconv"

	"github.com/okian/ffnsync/internal/domain/model"
	"github.com/okian/ffnsync/pkg/logger"
	"github.com/okian/ffnsync/pkg/metrics"
)

// whitespace accepted inside a pool marker, raw or entity encoded.
const markerSpace = `(?:[\s\x{00a0}]|&nbsp;|&#160;)*`

var (
	poolMarkerPattern = regexp.MustCompile(`(?i)bassin` + markerSpace + `:` + markerSpace + `(25|50)` + markerSpace + `m`)
	rowPattern        = regexp.MustCompile(`(?is)<tr\b[^>]*>(.*?)</tr\s*>`)
	cellPattern       = regexp.MustCompile(`(?is)<t[dh]\b[^>]*>(.*?)</t[dh]\s*>`)
)

// Cell positions within a result row.
const (
	eventCell        = 0
	timeCell         = 1
	firstDetailCell  = 2
	minCellsPerRow   = 2
	discardNoTime    = "no_time"
	discardHeader    = "header"
	discardTooNarrow = "too_few_cells"
)

// Stats counts what happened during one parse.
type Stats struct {
	Sections  int `json:"sections"`
	Rows      int `json:"rows"`
	Emitted   int `json:"emitted"`
	Discarded int `json:"discarded"`
	Unique    int `json:"unique"`
}

// Parser turns results pages into deduplicated records. The zero value is
// usable; a Parser holds no per-parse state and is safe for concurrent use.
type Parser struct {
	logger logger.Logger
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts the best record per (event, pool length) from page.
func Parse(page string) []model.ParsedRecord {
	records, _ := (&Parser{}).Parse(page)
	return records
}

// Parse extracts the best record per (event, pool length) from page and
// reports parse counters.
func (p *Parser) Parse(page string) ([]model.ParsedRecord, Stats) {
	var stats Stats
	var emitted []model.ParsedRecord

	for _, sec := range sections(page) {
		stats.Sections++
		for _, row := range rowPattern.FindAllStringSubmatch(sec.body, -1) {
			stats.Rows++
			rec, reason := p.parseRow(row[1], sec.poolLength)
			if reason != "" {
				stats.Discarded++
				continue
			}
			stats.Emitted++
			emitted = append(emitted, rec)
		}
	}

	best := BestPerKey(emitted)
	stats.Unique = len(best)
	metrics.RecordParserRows(stats.Emitted, stats.Discarded)
	return best, stats
}

type section struct {
	poolLength int
	body       string
}

// sections splits page at each pool marker. Text before the first marker
// has no pool length and is dropped.
func sections(page string) []section {
	markers := poolMarkerPattern.FindAllStringSubmatchIndex(page, -1)
	out := make([]section, 0, len(markers))
	for i, m := range markers {
		end := len(page)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		pool, _ := strconv.Atoi(page[m[2]:m[3]])
		out = append(out, section{poolLength: pool, body: page[m[1]:end]})
	}
	return out
}

// parseRow builds a record from a row's inner markup. A non-empty reason
// means the row was dropped.
func (p *Parser) parseRow(inner string, poolLength int) (model.ParsedRecord, string) {
	matches := cellPattern.FindAllStringSubmatch(inner, -1)
	if len(matches) < minCellsPerRow {
		return model.ParsedRecord{}, p.drop(discardTooNarrow, "")
	}
	cells := make([]string, len(matches))
	for i, m := range matches {
		cells[i] = cellText(m[1])
	}

	seconds, ok := ParseTime(cells[timeCell])
	if !ok {
		return model.ParsedRecord{}, p.drop(discardNoTime, cells[eventCell])
	}
	if IsHeaderCell(cells[eventCell]) {
		return model.ParsedRecord{}, p.drop(discardHeader, cells[eventCell])
	}

	rec := model.ParsedRecord{
		EventName:   cells[eventCell],
		PoolLength:  poolLength,
		TimeSeconds: seconds,
	}
	for _, cell := range cells[firstDetailCell:] {
		if rec.RecordDate == nil {
			if date, ok := ParseDate(cell); ok {
				rec.RecordDate = &date
			}
		}
		if rec.FFNPoints == nil {
			if points, ok := ParsePoints(cell); ok {
				rec.FFNPoints = &points
			}
		}
	}
	return rec, ""
}

func (p *Parser) drop(reason, event string) string {
	if p.logger != nil {
		p.logger.Debug(context.Background(), "row dropped",
			logger.String("reason", reason),
			logger.String("event_name", event))
	}
	return reason
}
