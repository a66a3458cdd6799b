// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"time"
)

// RecordTypeCompetition tags records sourced from federation results.
const RecordTypeCompetition = "comp"

// RecordKey identifies one personal best for an athlete.
type RecordKey struct {
	EventName  string
	PoolLength int
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%dm", k.EventName, k.PoolLength)
}

// ParsedRecord is one best performance extracted from a federation results page.
// It lives only for the duration of a parse.
type ParsedRecord struct {
	EventName   string  `json:"event_name"`
	PoolLength  int     `json:"pool_length"`
	TimeSeconds float64 `json:"time_seconds"`
	RecordDate  *string `json:"record_date"` // YYYY-MM-DD
	FFNPoints   *int    `json:"ffn_points"`
}

// Key returns the deduplication key of the record.
func (r ParsedRecord) Key() RecordKey {
	return RecordKey{EventName: r.EventName, PoolLength: r.PoolLength}
}

// StoredRecord is a persisted personal record of one athlete.
type StoredRecord struct {
	ID          string    `json:"id"`
	AthleteID   string    `json:"athlete_id"`
	EventName   string    `json:"event_name"`
	PoolLength  int       `json:"pool_length"`
	TimeSeconds *float64  `json:"time_seconds"`
	RecordDate  *string   `json:"record_date"`
	FFNPoints   *int      `json:"ffn_points"`
	RecordType  string    `json:"record_type"`
	Notes       *string   `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key returns the (event, pool) key of the stored record.
func (r StoredRecord) Key() RecordKey {
	return RecordKey{EventName: r.EventName, PoolLength: r.PoolLength}
}

// BestTime returns the stored time, or +Inf when none is recorded so that
// any parsed time improves it.
func (r StoredRecord) BestTime() float64 {
	if r.TimeSeconds == nil {
		return math.Inf(1)
	}
	return *r.TimeSeconds
}

// RecordUpdate is the set of fields rewritten when a faster time arrives.
type RecordUpdate struct {
	TimeSeconds float64
	RecordDate  *string
	FFNPoints   *int
	RecordType  string
	Notes       *string
}

// Decision is the merge outcome for one parsed record.
type Decision int

const (
	DecisionSkip Decision = iota
	DecisionInsert
	DecisionUpdate
)

func (d Decision) String() string {
	switch d {
	case DecisionInsert:
		return "insert"
	case DecisionUpdate:
		return "update"
	case DecisionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Summary counts merge outcomes for one sync.
type Summary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed,omitempty"`
}

// Add records one decision.
func (s *Summary) Add(d Decision) {
	switch d {
	case DecisionInsert:
		s.Inserted++
	case DecisionUpdate:
		s.Updated++
	default:
		s.Skipped++
	}
}

// Total returns the number of records the summary accounts for.
func (s Summary) Total() int {
	return s.Inserted + s.Updated + s.Skipped + s.Failed
}

// Athlete is a registered athlete whose federation results are synced.
type Athlete struct {
	ID           string     `json:"athlete_id"`
	Name         string     `json:"athlete_name,omitempty"`
	IUF          string     `json:"iuf"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// SyncRequest asks for one athlete's federation results to be merged.
type SyncRequest struct {
	AthleteID   string
	AthleteName string
	IUF         string
}
