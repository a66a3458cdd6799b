package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ffnsync/internal/domain/model"
)

type recordIndexKey struct {
	athleteID string
	key       model.RecordKey
}

// MemoryStore is an in-process Store. Records are copied on the way in and
// out so callers never share memory with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]*model.StoredRecord
	byKey    map[recordIndexKey]string
	athletes map[string]model.Athlete

	opts    options
	updater metricsUpdater
	closed  atomic.Bool
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		records:  make(map[string]*model.StoredRecord),
		byKey:    make(map[recordIndexKey]string),
		athletes: make(map[string]model.Athlete),
		opts:     defaultOptions(),
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	s.updater.start(ctx, s.opts.metricsUpdateInterval, s.Count)
	return s
}

func (s *MemoryStore) FindRecord(_ context.Context, athleteID, eventName string, poolLength int) (rec *model.StoredRecord, err error) {
	defer func(start time.Time) { observe("find", start, err) }(time.Now())
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[recordIndexKey{athleteID, model.RecordKey{EventName: eventName, PoolLength: poolLength}}]
	if !ok {
		return nil, nil
	}
	return cloneRecord(s.records[id]), nil
}

func (s *MemoryStore) InsertRecord(_ context.Context, rec *model.StoredRecord) (err error) {
	defer func(start time.Time) { observe("insert", start, err) }(time.Now())
	if s.closed.Load() {
		return ErrClosed
	}
	if err := validateRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ik := recordIndexKey{rec.AthleteID, rec.Key()}
	if _, exists := s.byKey[ik]; exists {
		return fmt.Errorf("%w: %s %s", ErrDuplicate, rec.AthleteID, rec.Key())
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("%w: id %s", ErrDuplicate, rec.ID)
	}
	now := s.opts.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	s.records[rec.ID] = cloneRecord(rec)
	s.byKey[ik] = rec.ID
	return nil
}

func (s *MemoryStore) UpdateRecord(_ context.Context, id string, fields model.RecordUpdate) (err error) {
	defer func(start time.Time) { observe("update", start, err) }(time.Now())
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	t := fields.TimeSeconds
	rec.TimeSeconds = &t
	rec.RecordDate = cloneString(fields.RecordDate)
	rec.FFNPoints = cloneInt(fields.FFNPoints)
	rec.RecordType = fields.RecordType
	rec.Notes = cloneString(fields.Notes)
	rec.UpdatedAt = s.opts.now()
	return nil
}

func (s *MemoryStore) ListRecords(_ context.Context, athleteID string) (out []model.StoredRecord, err error) {
	defer func(start time.Time) { observe("list", start, err) }(time.Now())
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.RLock()
	out = make([]model.StoredRecord, 0)
	for _, rec := range s.records {
		if rec.AthleteID == athleteID {
			out = append(out, *cloneRecord(rec))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].PoolLength != out[j].PoolLength {
			return out[i].PoolLength < out[j].PoolLength
		}
		return out[i].EventName < out[j].EventName
	})
	return out, nil
}

func (s *MemoryStore) UpsertAthlete(_ context.Context, a model.Athlete) (err error) {
	defer func(start time.Time) { observe("upsert_athlete", start, err) }(time.Now())
	if s.closed.Load() {
		return ErrClosed
	}
	if err := validateAthlete(a); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.athletes[a.ID]; ok {
		if a.Name == "" {
			a.Name = prev.Name
		}
		if a.LastSyncedAt == nil {
			a.LastSyncedAt = prev.LastSyncedAt
		}
	}
	if a.LastSyncedAt != nil {
		t := *a.LastSyncedAt
		a.LastSyncedAt = &t
	}
	s.athletes[a.ID] = a
	return nil
}

func (s *MemoryStore) ListAthletes(_ context.Context) ([]model.Athlete, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.RLock()
	out := make([]model.Athlete, 0, len(s.athletes))
	for _, a := range s.athletes {
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Close stops the background metrics updater. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	s.updater.stop()
	return nil
}

func cloneRecord(rec *model.StoredRecord) *model.StoredRecord {
	if rec == nil {
		return nil
	}
	cp := *rec
	if rec.TimeSeconds != nil {
		t := *rec.TimeSeconds
		cp.TimeSeconds = &t
	}
	cp.RecordDate = cloneString(rec.RecordDate)
	cp.FFNPoints = cloneInt(rec.FFNPoints)
	cp.Notes = cloneString(rec.Notes)
	return &cp
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
