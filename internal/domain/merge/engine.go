// Package merge folds freshly parsed federation records into an athlete's
// stored personal records, keeping only improvements.
package merge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/ffnsync/internal/domain/model"
	"github.com/okian/ffnsync/pkg/logger"
	"github.com/okian/ffnsync/pkg/metrics"
)

const notesSeparator = " | "

// Store is the record storage the engine reads and writes.
type Store interface {
	// FindRecord returns nil, nil when the athlete has no record for the key.
	FindRecord(ctx context.Context, athleteID, eventName string, poolLength int) (*model.StoredRecord, error)
	InsertRecord(ctx context.Context, rec *model.StoredRecord) error
	UpdateRecord(ctx context.Context, id string, fields model.RecordUpdate) error
}

// Engine classifies parsed records against stored ones and applies the
// resulting inserts and updates.
type Engine struct {
	store  Store
	policy Policy
	logger logger.Logger
	now    func() time.Time
}

// New creates an Engine writing to store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		policy: AbortOnError,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("merge")
	}
	return e
}

// Policy returns the storage-failure policy in effect.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Classify decides what to do with parsed given the stored record for the
// same key. A missing stored time always loses; an equal time is a skip.
func Classify(parsed model.ParsedRecord, existing *model.StoredRecord) model.Decision {
	if existing == nil {
		return model.DecisionInsert
	}
	if parsed.TimeSeconds < existing.BestTime() {
		return model.DecisionUpdate
	}
	return model.DecisionSkip
}

// BuildNotes composes the free-text annotation of a federation record.
func BuildNotes(athleteName string, points *int) *string {
	parts := make([]string, 0, 2)
	if name := strings.TrimSpace(athleteName); name != "" {
		parts = append(parts, "Nageur: "+name)
	}
	if points != nil {
		parts = append(parts, strconv.Itoa(*points)+" pts FFN")
	}
	if len(parts) == 0 {
		return nil
	}
	notes := strings.Join(parts, notesSeparator)
	return &notes
}

// Apply merges records for one athlete, sequentially and in input order.
// Each record costs one lookup and at most one write. Under AbortOnError the
// first storage failure ends the batch and the partial summary is returned
// with the error; writes made before it are kept.
func (e *Engine) Apply(ctx context.Context, athleteID, athleteName string, records []model.ParsedRecord) (model.Summary, error) {
	var summary model.Summary
	if e.store == nil {
		return summary, ErrNoStore
	}
	defer func() {
		metrics.RecordDecisions(summary.Inserted, summary.Updated, summary.Skipped, summary.Failed)
	}()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("merge for athlete %s: %w", athleteID, err)
		}

		decision, err := e.applyOne(ctx, athleteID, athleteName, rec)
		if err != nil {
			if e.policy == ContinueOnError {
				summary.Failed++
				e.logger.Warn(ctx, "record merge failed, continuing",
					logger.String("athlete_id", athleteID),
					logger.String("key", rec.Key().String()),
					logger.Error(err))
				continue
			}
			return summary, fmt.Errorf("merge %s for athlete %s: %w", rec.Key(), athleteID, err)
		}
		summary.Add(decision)

		e.logger.Debug(ctx, "record merged",
			logger.String("athlete_id", athleteID),
			logger.String("key", rec.Key().String()),
			logger.String("decision", decision.String()),
			logger.Float64("time_seconds", rec.TimeSeconds))
	}
	return summary, nil
}

func (e *Engine) applyOne(ctx context.Context, athleteID, athleteName string, rec model.ParsedRecord) (model.Decision, error) {
	existing, err := e.store.FindRecord(ctx, athleteID, rec.EventName, rec.PoolLength)
	if err != nil {
		return model.DecisionSkip, fmt.Errorf("%w: find: %w", ErrStore, err)
	}

	decision := Classify(rec, existing)
	notes := BuildNotes(athleteName, rec.FFNPoints)

	switch decision {
	case model.DecisionInsert:
		t := rec.TimeSeconds
		now := e.now()
		stored := &model.StoredRecord{
			AthleteID:   athleteID,
			EventName:   rec.EventName,
			PoolLength:  rec.PoolLength,
			TimeSeconds: &t,
			RecordDate:  rec.RecordDate,
			FFNPoints:   rec.FFNPoints,
			RecordType:  model.RecordTypeCompetition,
			Notes:       notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := e.store.InsertRecord(ctx, stored); err != nil {
			return decision, fmt.Errorf("%w: insert: %w", ErrStore, err)
		}
	case model.DecisionUpdate:
		update := model.RecordUpdate{
			TimeSeconds: rec.TimeSeconds,
			RecordDate:  rec.RecordDate,
			FFNPoints:   rec.FFNPoints,
			RecordType:  model.RecordTypeCompetition,
			Notes:       notes,
		}
		if err := e.store.UpdateRecord(ctx, existing.ID, update); err != nil {
			return decision, fmt.Errorf("%w: update: %w", ErrStore, err)
		}
	}
	return decision, nil
}
