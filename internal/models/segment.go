package models

import "time"

// Segment is one completed MP4 recording file for a stream.
//
// Rows are immutable once inserted: a segment is written exactly once,
// when its writer finalizes, and is only ever removed by retention
// sweeping (internal/retention), never updated in place.
type Segment struct {
	ID        uint64    `gorm:"primarykey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	StreamName string `gorm:"column:stream_name;index:idx_recordings_stream_time;not null;size:63" json:"stream_name"`
	FilePath   string `gorm:"column:file_path;not null;size:4096" json:"file_path"`

	// StartTime and EndTime are UTC epoch seconds. Stored as integers
	// rather than time.Time so SQL range comparisons stay index-friendly
	// and timezone-agnostic.
	StartTime int64 `gorm:"column:start_time;index:idx_recordings_stream_time;not null" json:"start_time"`
	EndTime   int64 `gorm:"column:end_time;not null" json:"end_time"`

	SizeBytes int64 `gorm:"column:size_bytes;default:0" json:"size_bytes"`

	HasDetection bool `gorm:"column:has_detection;default:false" json:"has_detection"`

	// Anomaly records a writer-finalize-failure: the row was inserted
	// best-effort with whatever size was known at the time, and the
	// on-disk file was deliberately left for human inspection.
	Anomaly     bool   `gorm:"column:anomaly;default:false" json:"anomaly"`
	AnomalyNote string `gorm:"column:anomaly_note;size:512" json:"anomaly_note,omitempty"`
}

// TableName pins the GORM table name.
func (Segment) TableName() string {
	return "recordings"
}

// Duration returns the segment's length in seconds.
func (s *Segment) Duration() int64 {
	return s.EndTime - s.StartTime
}

// Overlaps reports whether the segment overlaps the closed interval [start, end].
func (s *Segment) Overlaps(start, end int64) bool {
	return s.EndTime >= start && s.StartTime <= end
}
