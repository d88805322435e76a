// Package catalog persists completed recording segments and the
// companion recorder event log, and answers the overlap queries the
// timeline package builds on.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/tvarr-recorder/internal/metrics"
	"github.com/jmylchreest/tvarr-recorder/internal/models"
	"gorm.io/gorm"
)

// QueryOptions bounds a segment query. Start/End are inclusive UTC
// instants; a zero value for either means "unbounded" on that side.
type QueryOptions struct {
	Start  time.Time
	End    time.Time
	Stream string
	Order  string // "asc" (default) or "desc", applied to start_time
	Offset int
	Limit  int
}

// Store is the GORM-backed segment catalog and event log. A single
// mutex wraps every call into the underlying database.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	mu     sync.Mutex
}

// New constructs a Store and migrates the recordings and events tables.
func New(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&models.Segment{}, &models.EventLog{}); err != nil {
		return nil, fmt.Errorf("migrating catalog tables: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Insert persists a completed segment and returns its assigned id.
// The transaction commits before this call returns, so a Query that
// starts afterwards always sees the new row.
func (s *Store) Insert(ctx context.Context, seg *models.Segment) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.WithContext(ctx).Create(seg).Error; err != nil {
		return 0, fmt.Errorf("inserting segment for stream %q: %w", seg.StreamName, err)
	}
	metrics.SegmentsInsertedTotal.WithLabelValues(seg.StreamName).Inc()
	return seg.ID, nil
}

// ByID retrieves a segment by id, or models.ErrSegmentNotFound.
func (s *Store) ByID(ctx context.Context, id uint64) (*models.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var seg models.Segment
	if err := s.db.WithContext(ctx).First(&seg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrSegmentNotFound
		}
		return nil, fmt.Errorf("getting segment %d: %w", id, err)
	}
	return &seg, nil
}

// Query returns segments matching opts, ordered by start time. A
// segment is included whenever end_time >= Start AND start_time <= End,
// not only when fully contained in the range, so a recording that
// merely spans into the requested window is still surfaced.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]models.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.db.WithContext(ctx).Model(&models.Segment{})

	if opts.Stream != "" {
		q = q.Where("stream_name = ?", opts.Stream)
	}
	if !opts.Start.IsZero() {
		q = q.Where("end_time >= ?", opts.Start.Unix())
	}
	if !opts.End.IsZero() {
		q = q.Where("start_time <= ?", opts.End.Unix())
	}

	switch opts.Order {
	case "desc":
		q = q.Order("start_time DESC")
	default:
		q = q.Order("start_time ASC")
	}

	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	q = q.Limit(limit)

	var segs []models.Segment
	if err := q.Find(&segs).Error; err != nil {
		return nil, fmt.Errorf("querying segments: %w", err)
	}
	return segs, nil
}

// defaultQueryLimit bounds a Query call with no caller-supplied limit.
const defaultQueryLimit = 1000

// DeleteOlderThan removes segment rows whose end_time is before cutoff.
// It deliberately does not remove the underlying files; that is an ops
// decision outside this package.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.WithContext(ctx).Where("end_time < ?", cutoff.Unix()).Delete(&models.Segment{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting segments older than %s: %w", cutoff, res.Error)
	}
	return res.RowsAffected, nil
}

// TrimToSize deletes the oldest segment rows until the catalog's total
// recorded size is at or under maxBytes, and returns the number of
// rows removed. Like DeleteOlderThan it only trims the catalog; the
// on-disk files are left alone.
func (s *Store) TrimToSize(ctx context.Context, maxBytes int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Segment{}).
		Select("COALESCE(SUM(size_bytes), 0)").Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("summing catalog size: %w", err)
	}

	var removed int64
	for total > maxBytes {
		var batch []models.Segment
		if err := s.db.WithContext(ctx).Order("start_time ASC").Limit(100).Find(&batch).Error; err != nil {
			return removed, fmt.Errorf("listing oldest segments: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, seg := range batch {
			if total <= maxBytes {
				return removed, nil
			}
			if err := s.db.WithContext(ctx).Delete(&models.Segment{}, seg.ID).Error; err != nil {
				return removed, fmt.Errorf("trimming segment %d: %w", seg.ID, err)
			}
			total -= seg.SizeBytes
			removed++
		}
	}
	return removed, nil
}

// RecordEvent appends a row to the companion event log.
func (s *Store) RecordEvent(ctx context.Context, kind models.EventKind, streamName, message, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt := &models.EventLog{
		Kind:       kind,
		StreamName: streamName,
		Message:    message,
		FilePath:   filePath,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(evt).Error; err != nil {
		return fmt.Errorf("recording event %s for stream %q: %w", kind, streamName, err)
	}
	return nil
}

// EventsFor returns the most recent events for a stream, newest first,
// bounded by limit. Used by operators inspecting recorder history.
func (s *Store) EventsFor(ctx context.Context, streamName string, limit int) ([]models.EventLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = defaultQueryLimit
	}
	var events []models.EventLog
	if err := s.db.WithContext(ctx).Where("stream_name = ?", streamName).Order("ts DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("listing events for stream %q: %w", streamName, err)
	}
	return events, nil
}
