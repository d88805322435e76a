package models

import "time"

// EventKind enumerates the recorder lifecycle events recorded alongside
// the segment catalog.
type EventKind string

const (
	// EventRecordingStart marks a recorder successfully opening its first
	// writer. Segment rotation does not record one.
	EventRecordingStart EventKind = "RECORDING_START"
	// EventRecordingStop marks a writer being finalized and closed when a
	// recorder stops or by registry close_all. Segment rotation does not
	// record one.
	EventRecordingStop EventKind = "RECORDING_STOP"
	// EventRecordingAnomaly marks a writer-finalize-failure or other
	// best-effort recovery that a human should review.
	EventRecordingAnomaly EventKind = "RECORDING_ANOMALY"
)

// EventLog is an append-only record of recorder lifecycle events.
type EventLog struct {
	ID        uint64    `gorm:"primarykey;autoIncrement" json:"id"`
	Kind      EventKind `gorm:"column:kind;index;not null;size:32" json:"kind"`
	StreamName string   `gorm:"column:stream_name;index;size:63" json:"stream_name"`
	Message   string    `gorm:"column:message;size:1024" json:"message,omitempty"`
	FilePath  string    `gorm:"column:file_path;size:4096" json:"file_path,omitempty"`
	Timestamp time.Time `gorm:"column:ts;index;not null" json:"timestamp"`
}

// TableName pins the GORM table name.
func (EventLog) TableName() string {
	return "events"
}
