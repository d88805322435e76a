// Package retention schedules the segment catalog's age-based sweep: a
// cron instance driving a single recurring job that trims old rows.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/tvarr-recorder/internal/catalog"
	"github.com/jmylchreest/tvarr-recorder/internal/config"
	"github.com/jmylchreest/tvarr-recorder/internal/metrics"
	"github.com/robfig/cron/v3"
)

// Sweeper periodically removes catalog rows older than the configured
// max age. It does not touch the underlying files; removing the
// on-disk segment is an ops decision outside the catalog's remit.
type Sweeper struct {
	store        *catalog.Store
	maxAge       time.Duration
	maxTotalSize int64
	cron         *cron.Cron
	logger       *slog.Logger
}

// NewSweeper constructs a Sweeper from retention config. The cron
// expression is parsed with seconds support (6-field).
func NewSweeper(store *catalog.Store, cfg config.RetentionConfig, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	s := &Sweeper{
		store:        store,
		maxAge:       cfg.MaxAge.Duration(),
		maxTotalSize: int64(cfg.MaxTotalSize),
		cron:         c,
		logger:       logger,
	}

	if cfg.Enabled {
		if _, err := c.AddFunc(cfg.Cron, s.sweep); err != nil {
			return nil, fmt.Errorf("scheduling retention sweep %q: %w", cfg.Cron, err)
		}
	}

	return s, nil
}

// Start begins the cron scheduler. No-op if retention is disabled (no
// job was registered in NewSweeper, so the cron loop has nothing to run).
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the cron scheduler and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs a single sweep immediately, for operators and tests
// that don't want to wait on the cron schedule. Age-based trimming
// runs first; if a total-size cap is configured, oldest segments are
// then trimmed until the catalog is back under it.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.maxAge)
	n, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}
	if n > 0 {
		metrics.RetentionSweepDeletedTotal.Add(float64(n))
		s.logger.Info("retention sweep removed segments", slog.Int64("count", n), slog.Time("cutoff", cutoff))
	}

	if s.maxTotalSize > 0 {
		trimmed, err := s.store.TrimToSize(ctx, s.maxTotalSize)
		if err != nil {
			return n, fmt.Errorf("retention size trim: %w", err)
		}
		if trimmed > 0 {
			metrics.RetentionSweepDeletedTotal.Add(float64(trimmed))
			s.logger.Info("retention sweep trimmed to size cap", slog.Int64("count", trimmed), slog.Int64("max_total_size", s.maxTotalSize))
		}
		n += trimmed
	}
	return n, nil
}

func (s *Sweeper) sweep() {
	if _, err := s.RunOnce(context.Background()); err != nil {
		s.logger.Error("retention sweep failed", slog.Any("error", err))
	}
}
