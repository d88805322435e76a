// Package configstore persists stream definitions: the name-keyed
// configuration row that tells the recorder engine what to ingest, at
// what cadence to rotate segments, and whether detection-based
// pre-buffering is active for a stream.
package configstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmylchreest/tvarr-recorder/internal/models"
	"gorm.io/gorm"
)

// Store is the GORM-backed stream config store. All mutators serialize
// on mu; reads also take the lock since SQLite's writer exclusivity
// makes a separate RWMutex no cheaper in practice here.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	cache  *columnCache

	mu sync.Mutex
}

// New constructs a Store and runs the streams table migration.
func New(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger, cache: newColumnCache()}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate runs AutoMigrate for the streams table and drops the column
// cache, since the DDL may have added columns an earlier populate
// reported absent.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&models.StreamConfig{}); err != nil {
		return fmt.Errorf("migrating streams table: %w", err)
	}
	s.cache.invalidate()
	return nil
}

// Add inserts a new stream config, or reuses an existing disabled row
// of the same name by updating it in place and returning its existing
// id, so re-adding a previously soft-deleted stream never produces a
// duplicate.
func (s *Store) Add(ctx context.Context, cfg *models.StreamConfig) (uint64, error) {
	if err := validate(cfg); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing models.StreamConfig
	err := s.db.WithContext(ctx).Where("name = ? AND enabled = ?", cfg.Name, false).First(&existing).Error
	switch {
	case err == nil:
		cfg.ID = existing.ID
		cfg.CreatedAt = existing.CreatedAt
		cfg.Enabled = true
		if err := s.db.WithContext(ctx).Save(cfg).Error; err != nil {
			return 0, fmt.Errorf("re-enabling disabled stream %q: %w", cfg.Name, err)
		}
		s.logger.Info("re-enabled disabled stream config", slog.String("name", cfg.Name), slog.Uint64("id", existing.ID))
		return existing.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(cfg).Error; err != nil {
			return 0, fmt.Errorf("creating stream config %q: %w", cfg.Name, err)
		}
		return cfg.ID, nil
	default:
		return 0, fmt.Errorf("looking up disabled stream %q: %w", cfg.Name, err)
	}
}

// Update overwrites the named stream's config. Returns models.ErrStreamNotFound
// if no row with that name exists.
func (s *Store) Update(ctx context.Context, name string, cfg *models.StreamConfig) error {
	if err := validate(cfg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing models.StreamConfig
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrStreamNotFound
		}
		return fmt.Errorf("looking up stream %q: %w", name, err)
	}

	cfg.ID = existing.ID
	cfg.CreatedAt = existing.CreatedAt
	cfg.Name = name
	if err := s.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return fmt.Errorf("updating stream %q: %w", name, err)
	}
	return nil
}

// Delete removes a stream config. When permanent is false (the
// default), it clears the enabled flag; when true it removes the row
// entirely.
func (s *Store) Delete(ctx context.Context, name string, permanent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if permanent {
		res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&models.StreamConfig{})
		if res.Error != nil {
			return fmt.Errorf("deleting stream %q: %w", name, res.Error)
		}
		if res.RowsAffected == 0 {
			return models.ErrStreamNotFound
		}
		return nil
	}

	res := s.db.WithContext(ctx).Model(&models.StreamConfig{}).Where("name = ?", name).Update("enabled", false)
	if res.Error != nil {
		return fmt.Errorf("disabling stream %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrStreamNotFound
	}
	return nil
}

// Get retrieves a stream config by name, populating any optional field
// absent from the schema with its documented default.
func (s *Store) Get(ctx context.Context, name string) (*models.StreamConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, name)
}

func (s *Store) get(ctx context.Context, name string) (*models.StreamConfig, error) {
	var cfg models.StreamConfig
	if err := s.selectStmt(ctx).Where("name = ?", name).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrStreamNotFound
		}
		return nil, fmt.Errorf("getting stream %q: %w", name, err)
	}
	s.applyDefaults(&cfg)
	return &cfg, nil
}

// List returns up to cap stream configs ordered by priority then name.
func (s *Store) List(ctx context.Context, limit int) ([]models.StreamConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfgs []models.StreamConfig
	q := s.selectStmt(ctx).Order("priority DESC, name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&cfgs).Error; err != nil {
		return nil, fmt.Errorf("listing streams: %w", err)
	}
	for i := range cfgs {
		s.applyDefaults(&cfgs[i])
	}
	return cfgs, nil
}

// Count returns the total number of stream rows, enabled or not.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.StreamConfig{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting streams: %w", err)
	}
	return n, nil
}

// CountEnabled returns the number of enabled stream rows.
func (s *Store) CountEnabled(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.StreamConfig{}).Where("enabled = ?", true).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting enabled streams: %w", err)
	}
	return n, nil
}

// EligibleForLive reports yes/no/missing for whether a stream may be
// served to live viewers: yes iff both enabled and streaming_enabled.
func (s *Store) EligibleForLive(ctx context.Context, name string) (eligible bool, missing bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.get(ctx, name)
	if err != nil {
		if errors.Is(err, models.ErrStreamNotFound) {
			return false, true, nil
		}
		return false, false, err
	}
	return cfg.EligibleForLive(), false, nil
}

// selectStmt builds a SELECT restricted to the widest subset of
// columns actually present on the connected schema. Core columns are
// always selected; the optional blocks are added only when the column
// cache confirms their presence.
func (s *Store) selectStmt(ctx context.Context) *gorm.DB {
	cols := []string{
		"id", "created_at", "updated_at", "name", "url", "enabled", "streaming_enabled",
		"width", "height", "fps", "codec", "priority", "record", "segment_duration",
	}
	if s.cache.hasDetectionBlock(s.db) {
		cols = append(cols, detectionColumns...)
	}
	if s.cache.hasProtocol(s.db) {
		cols = append(cols, "protocol")
	}
	if s.cache.hasONVIF(s.db) {
		cols = append(cols, "is_onvif")
	}
	if s.cache.hasRecordAudio(s.db) {
		cols = append(cols, "record_audio")
	}
	return s.db.WithContext(ctx).Select(cols)
}

func (s *Store) applyDefaults(cfg *models.StreamConfig) {
	cfg.ApplyColumnDefaults(
		s.cache.hasDetectionBlock(s.db),
		s.cache.hasProtocol(s.db),
		s.cache.hasONVIF(s.db),
		s.cache.hasRecordAudio(s.db),
	)
}

func validate(cfg *models.StreamConfig) error {
	if cfg.Name == "" {
		return models.ErrNameRequired
	}
	if len(cfg.Name) > 63 {
		return models.ErrNameTooLong
	}
	if cfg.URL == "" {
		return models.ErrURLRequired
	}
	return nil
}
