// Package models defines GORM database models for the recorder's catalog.
package models

import "time"

// Protocol identifies the transport used to reach a stream's source URL.
type Protocol string

const (
	// ProtocolTCP is the default, most reliable RTSP transport.
	ProtocolTCP Protocol = "tcp"
	// ProtocolUDP trades reliability for lower latency.
	ProtocolUDP Protocol = "udp"
)

// Default values applied when an optional column is absent from the
// streams table (see columnCache in internal/configstore).
const (
	DefaultDetectionThreshold = 0.5
	DefaultDetectionInterval  = 10
	DefaultPreDetectionBuffer = 0 // pre-buffering is disabled by default to avoid live-stream delay
	DefaultPostDetectionBuffer = 3
)

// StreamConfig is the persisted definition of one video source.
//
// Name is the business key: the recorder engine, registry, and catalog
// all address a stream by this value, never by ID. A disabled row with
// a matching name is reused (rather than duplicated) by the config
// store's Add operation.
type StreamConfig struct {
	ID        uint64    `gorm:"primarykey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name             string `gorm:"uniqueIndex;not null;size:63" json:"name"`
	URL              string `gorm:"not null;size:2048" json:"url"`
	Enabled          bool   `gorm:"default:true" json:"enabled"`
	StreamingEnabled bool   `gorm:"column:streaming_enabled;default:false" json:"streaming_enabled"`

	Width  int `json:"width"`
	Height int `json:"height"`
	FPS    int `json:"fps"`
	Codec  string `gorm:"size:32" json:"codec"`

	Priority         int  `json:"priority"`
	Record           bool `gorm:"default:true" json:"record"`
	SegmentDuration  int  `gorm:"column:segment_duration;default:60" json:"segment_duration"`

	// Detection fields are optional for migration tolerance: older schemas
	// may not carry this block, in which case the config store substitutes
	// the Default* constants above. See columnCache in internal/configstore.
	DetectionBasedRecording bool    `gorm:"column:detection_based_recording" json:"detection_based_recording"`
	DetectionModel          string  `gorm:"column:detection_model;size:512" json:"detection_model"`
	DetectionThreshold      float64 `gorm:"column:detection_threshold" json:"detection_threshold"`
	DetectionInterval       int     `gorm:"column:detection_interval" json:"detection_interval"`
	PreDetectionBuffer      int     `gorm:"column:pre_detection_buffer" json:"pre_detection_buffer"`
	PostDetectionBuffer     int     `gorm:"column:post_detection_buffer" json:"post_detection_buffer"`

	Protocol     Protocol `gorm:"column:protocol;size:8" json:"protocol"`
	IsONVIF      bool     `gorm:"column:is_onvif" json:"is_onvif"`
	RecordAudio  bool     `gorm:"column:record_audio" json:"record_audio"`
}

// TableName pins the GORM table name independent of struct renames.
func (StreamConfig) TableName() string {
	return "streams"
}

// ApplyColumnDefaults fills optional fields with their documented defaults.
// Called by the config store's read path when the underlying schema lacks
// the corresponding column, so a stale row never surfaces zero-valued
// detection settings that would be indistinguishable from an operator
// having explicitly chosen them.
func (s *StreamConfig) ApplyColumnDefaults(hasDetection, hasProtocol, hasONVIF, hasRecordAudio bool) {
	if !hasDetection {
		s.DetectionThreshold = DefaultDetectionThreshold
		s.DetectionInterval = DefaultDetectionInterval
		s.PreDetectionBuffer = DefaultPreDetectionBuffer
		s.PostDetectionBuffer = DefaultPostDetectionBuffer
	}
	if !hasProtocol {
		s.Protocol = ProtocolTCP
	}
	if !hasONVIF {
		s.IsONVIF = false
	}
	if !hasRecordAudio {
		s.RecordAudio = false
	}
}

// EligibleForLive reports whether the stream may be served to live viewers.
func (s *StreamConfig) EligibleForLive() bool {
	return s.Enabled && s.StreamingEnabled
}
