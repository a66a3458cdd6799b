// Package repository stores athletes' personal records and the registry of
// athletes kept in sync with the federation.
package repository

import (
	"context"
	"time"

	"github.com/okian/ffnsync/internal/domain/merge"
	"github.com/okian/ffnsync/internal/domain/model"
	"github.com/okian/ffnsync/pkg/metrics"
)

// Store provides read/write access to records and the athlete registry.
type Store interface {
	merge.Store

	// ListRecords returns an athlete's records ordered by pool length then
	// event name.
	ListRecords(ctx context.Context, athleteID string) ([]model.StoredRecord, error)

	// UpsertAthlete registers an athlete or refreshes its IUF, name and last
	// sync time. An empty name or nil LastSyncedAt keeps the stored value.
	UpsertAthlete(ctx context.Context, a model.Athlete) error
	// ListAthletes returns registered athletes ordered by id.
	ListAthletes(ctx context.Context) ([]model.Athlete, error)

	// Count returns the number of stored records across all athletes.
	Count(ctx context.Context) (int, error)

	Close() error
}

func validateRecord(rec *model.StoredRecord) error {
	if rec == nil || rec.AthleteID == "" || rec.EventName == "" || rec.PoolLength <= 0 {
		return ErrInvalidRecord
	}
	return nil
}

func validateAthlete(a model.Athlete) error {
	if a.ID == "" || a.IUF == "" {
		return ErrInvalidRecord
	}
	return nil
}

// observe records latency and failures of one store operation.
func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(op)
	}
}
