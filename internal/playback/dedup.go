package playback

import (
	"errors"
	"sync"

	"github.com/jmylchreest/tvarr-recorder/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// Sentinel errors surfaced by TryActivate: ErrDuplicate maps to HTTP
// 429, ErrOverflow to HTTP 503.
var (
	ErrDuplicate = errors.New("duplicate playback request")
	ErrOverflow  = errors.New("playback request table is full")
)

// Dedup suppresses concurrent duplicate playback work on the same
// recording id: a map of in-flight ids guarded by a mutex, with a
// semaphore.Weighted enforcing the capacity bound.
type Dedup struct {
	mu     sync.Mutex
	active map[int64]struct{}
	sem    *semaphore.Weighted
}

// NewDedup constructs a Dedup bounded by capacity concurrent in-flight
// ids (default 32).
func NewDedup(capacity int) *Dedup {
	if capacity < 1 {
		capacity = 32
	}
	return &Dedup{
		active: make(map[int64]struct{}),
		sem:    semaphore.NewWeighted(int64(capacity)),
	}
}

// TryActivate claims id, returning nil exactly once per id until
// Deactivate is called. ErrDuplicate means id is already in flight;
// ErrOverflow means the table is at capacity.
func (d *Dedup) TryActivate(id int64) error {
	d.mu.Lock()
	if _, exists := d.active[id]; exists {
		d.mu.Unlock()
		metrics.DedupRejectionsTotal.WithLabelValues("duplicate").Inc()
		return ErrDuplicate
	}
	d.mu.Unlock()

	if !d.sem.TryAcquire(1) {
		metrics.DedupRejectionsTotal.WithLabelValues("overflow").Inc()
		return ErrOverflow
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.active[id]; exists {
		d.sem.Release(1)
		metrics.DedupRejectionsTotal.WithLabelValues("duplicate").Inc()
		return ErrDuplicate
	}
	d.active[id] = struct{}{}
	return nil
}

// Deactivate releases id's slot. Every exit path of a playback request
// (success, client disconnect, error) must call this.
func (d *Dedup) Deactivate(id int64) {
	d.mu.Lock()
	_, existed := d.active[id]
	delete(d.active, id)
	d.mu.Unlock()

	if existed {
		d.sem.Release(1)
	}
}

// Active reports whether id currently holds a slot, for tests and
// diagnostics.
func (d *Dedup) Active(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.active[id]
	return ok
}
