// Package engine implements the recorder registry, the per-stream
// recorder loop, and the engine that orchestrates them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/jmylchreest/tvarr-recorder/internal/catalog"
	"github.com/jmylchreest/tvarr-recorder/internal/metrics"
	"github.com/jmylchreest/tvarr-recorder/internal/models"
	"github.com/jmylchreest/tvarr-recorder/internal/ringbuffer"
	"github.com/jmylchreest/tvarr-recorder/internal/writer"
)

// slot is one registry entry: a stream name paired with its active
// writer and, when pre-buffering is configured, its ring buffer.
type slot struct {
	name   string
	writer writer.Writer
	ring   *ringbuffer.Buffer
}

// Registry maps each stream name to its active writer and optional
// ring buffer. One mutex guards the map itself; blocking work (writer
// Close, file Stat, catalog writes) always happens on a local snapshot
// taken after releasing the lock, so the lock is never held across
// file or database I/O.
type Registry struct {
	mu      sync.Mutex
	slots   map[string]*slot
	maxSize int

	catalog *catalog.Store
	logger  *slog.Logger
}

// NewRegistry constructs a Registry bounded by maxSize concurrent slots.
func NewRegistry(maxSize int, catalogStore *catalog.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		slots:   make(map[string]*slot),
		maxSize: maxSize,
		catalog: catalogStore,
		logger:  logger,
	}
}

// Register installs w (and, if non-nil, ring) as the active handle for
// name. If a slot already exists for name, the previous writer is
// captured, the slot is overwritten, the lock is released, and only
// then is the previous writer closed. Returns ErrRegistryFull if name
// is new and the registry is already at capacity.
func (r *Registry) Register(name string, w writer.Writer, ring *ringbuffer.Buffer) error {
	r.mu.Lock()
	existing, found := r.slots[name]
	var old writer.Writer
	var oldRing *ringbuffer.Buffer
	if found {
		old = existing.writer
		oldRing = existing.ring
		existing.writer = w
		existing.ring = ring
	} else {
		if len(r.slots) >= r.maxSize {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrRegistryFull, name)
		}
		r.slots[name] = &slot{name: name, writer: w, ring: ring}
		metrics.RecordersActive.Inc()
	}
	r.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			r.logger.Warn("closing superseded writer", slog.String("stream", name), slog.Any("error", err))
			metrics.WriterCloseTotal.WithLabelValues("error").Inc()
		} else {
			metrics.WriterCloseTotal.WithLabelValues("rotated").Inc()
		}
	}
	if oldRing != nil {
		oldRing.Free()
	}
	return nil
}

// Lookup returns the writer currently registered for name, if any. The
// reference is copied out under the lock so the caller never holds the
// registry mutex while using it. Lookup makes no lifetime guarantee
// beyond the moment of return: the caller must only use the writer
// while the owning recorder is known to be alive.
func (r *Registry) Lookup(name string) (writer.Writer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[name]
	if !ok || s.writer == nil {
		return nil, false
	}
	return s.writer, true
}

// Unregister clears the slot for name and hands the writer back to the
// caller. Closing the writer is deliberately not the registry's job:
// ownership transfers to whoever called Unregister, and a nil return
// means someone else (a concurrent CloseAll) already took it, so the
// caller must not close. The ring buffer is freed here, after the lock
// is released, and returned for inspection.
func (r *Registry) Unregister(name string) (writer.Writer, *ringbuffer.Buffer) {
	r.mu.Lock()
	s, ok := r.slots[name]
	if !ok {
		r.mu.Unlock()
		return nil, nil
	}
	w := s.writer
	ring := s.ring
	delete(r.slots, name)
	r.mu.Unlock()

	metrics.RecordersActive.Dec()
	if ring != nil {
		ring.Free()
	}
	return w, ring
}

// Count returns the number of active slots.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// CloseAll is the shutdown safety net. It snapshots every slot under
// the lock, clears the table, then, outside the lock, closes each
// writer exactly once, stats its output file, and records a
// RECORDING_STOP event. It is safe to call even while recorders are
// racing to finalize their own handles: once a slot is removed from
// the map here, Unregister returns nil for it and no other code path
// will close that writer again.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	snapshot := make([]*slot, 0, len(r.slots))
	for name, s := range r.slots {
		snapshot = append(snapshot, s)
		delete(r.slots, name)
	}
	r.mu.Unlock()

	metrics.RecordersActive.Sub(float64(len(snapshot)))
	for _, s := range snapshot {
		if s.ring != nil {
			s.ring.Free()
		}
		if s.writer == nil {
			continue
		}

		path := s.writer.OutputPath()
		if err := s.writer.Close(); err != nil {
			r.logger.Error("closing writer during shutdown", slog.String("stream", s.name), slog.Any("error", err))
			metrics.WriterCloseTotal.WithLabelValues("error").Inc()
		} else {
			metrics.WriterCloseTotal.WithLabelValues("shutdown").Inc()
		}

		if info, err := os.Stat(path); err != nil {
			r.logger.Warn("stat on shutdown close failed", slog.String("stream", s.name), slog.String("path", path), slog.Any("error", err))
		} else {
			r.logger.Info("recording closed on shutdown", slog.String("stream", s.name), slog.String("path", path), slog.Int64("size_bytes", info.Size()))
		}

		if r.catalog != nil {
			if err := r.catalog.RecordEvent(ctx, models.EventRecordingStop, s.name, "registry close_all", path); err != nil {
				r.logger.Error("recording shutdown event failed", slog.String("stream", s.name), slog.Any("error", err))
			}
		}
	}
}
