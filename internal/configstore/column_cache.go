package configstore

import (
	"sync"

	"github.com/jmylchreest/tvarr-recorder/internal/models"
	"gorm.io/gorm"
)

// columnCache answers "does column X exist on the streams table?"
// without re-querying the schema on every read. It is populated once
// per connection (lazily, on first use) and invalidated whenever
// AutoMigrate runs.
type columnCache struct {
	mu      sync.RWMutex
	columns map[string]bool
	loaded  bool
}

func newColumnCache() *columnCache {
	return &columnCache{columns: make(map[string]bool)}
}

// invalidate forces the next Has call to re-query the schema. Callers
// invoke this after running AutoMigrate against the streams table.
func (c *columnCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.columns = make(map[string]bool)
}

// has reports whether the named column exists on the streams table,
// querying and caching the full column set on first call.
func (c *columnCache) has(db *gorm.DB, column string) bool {
	c.mu.RLock()
	if c.loaded {
		ok := c.columns[column]
		c.mu.RUnlock()
		return ok
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.populate(db)
	}
	return c.columns[column]
}

// populate must be called with c.mu held for writing.
func (c *columnCache) populate(db *gorm.DB) {
	for _, col := range optionalColumns {
		c.columns[col] = db.Migrator().HasColumn(&models.StreamConfig{}, col)
	}
	c.loaded = true
}

// optionalColumns are the columns introduced after the original
// schema. Older databases may lack any of them; reads must tolerate
// their absence.
var optionalColumns = []string{
	"detection_based_recording",
	"detection_model",
	"detection_threshold",
	"detection_interval",
	"pre_detection_buffer",
	"post_detection_buffer",
	"protocol",
	"is_onvif",
	"record_audio",
}

// detectionColumns are treated as one block: if any one of them is
// absent the whole detection block is considered unavailable and every
// detection field takes its documented default.
var detectionColumns = []string{
	"detection_based_recording",
	"detection_model",
	"detection_threshold",
	"detection_interval",
	"pre_detection_buffer",
	"post_detection_buffer",
}

func (c *columnCache) hasDetectionBlock(db *gorm.DB) bool {
	for _, col := range detectionColumns {
		if !c.has(db, col) {
			return false
		}
	}
	return true
}

func (c *columnCache) hasProtocol(db *gorm.DB) bool {
	return c.has(db, "protocol")
}

func (c *columnCache) hasONVIF(db *gorm.DB) bool {
	return c.has(db, "is_onvif")
}

func (c *columnCache) hasRecordAudio(db *gorm.DB) bool {
	return c.has(db, "record_audio")
}
