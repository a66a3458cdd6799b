// Package dedupe tracks which athletes have a sync in flight so that two
// syncs for the same athlete never overlap.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records in-flight athlete IDs.
type Deduper interface {
	// TryAcquire records id as in flight. It fails with ErrInFlight when id
	// is already recorded and with ErrFull when the guard is at capacity.
	TryAcquire(ctx context.Context, id string) error

	// SeenAndRecord reports whether id could not be recorded, either because
	// it is already in flight or because the guard is full.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord releases id once its sync has finished.
	Unrecord(ctx context.Context, id string)

	// InFlight reports whether id is currently recorded.
	InFlight(id string) bool

	Size() int64
}

// inMemoryDeduper keeps in-flight ids in a set. When bounded (maxSize > 0)
// new ids are refused at capacity; running entries are never evicted.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory guard.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{})
	return d
}

func (d *inMemoryDeduper) TryAcquire(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return ErrInFlight
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		return ErrFull
	}
	d.seen[id] = struct{}{}
	d.size.Add(1)
	return nil
}

func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	return d.TryAcquire(ctx, id) != nil
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) InFlight(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, exists := d.seen[id]
	return exists
}

// Size returns the number of in-flight ids.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
