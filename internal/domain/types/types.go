// Package types contains the wire shapes returned by the HTTP API.
package types

import "github.com/okian/ffnsync/internal/domain/model"

// Response status values.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusAccepted = "accepted"
)

// SyncResponse is the body of a successful POST /sync.
type SyncResponse struct {
	Status   string `json:"status"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed,omitempty"`
}

// NewSyncResponse builds the success body from a merge summary.
func NewSyncResponse(s model.Summary) SyncResponse {
	return SyncResponse{
		Status:   StatusOK,
		Inserted: s.Inserted,
		Updated:  s.Updated,
		Skipped:  s.Skipped,
		Failed:   s.Failed,
	}
}

// ErrorResponse carries a message only, never a stack trace.
type ErrorResponse struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}

// ParseStats mirrors the parser counters.
type ParseStats struct {
	Sections  int `json:"sections"`
	Rows      int `json:"rows"`
	Emitted   int `json:"emitted"`
	Discarded int `json:"discarded"`
	Unique    int `json:"unique"`
}

// ParseResponse is the body of POST /parse.
type ParseResponse struct {
	Records []model.ParsedRecord `json:"records"`
	Stats   ParseStats           `json:"stats"`
}

// RecordsResponse is the body of GET /athletes/{athleteID}/records.
type RecordsResponse struct {
	AthleteID string               `json:"athlete_id"`
	Records   []model.StoredRecord `json:"records"`
}

// ResyncResponse is the body of POST /resync.
type ResyncResponse struct {
	Status string `json:"status"`
	Queued int    `json:"queued"`
}
