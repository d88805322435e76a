package models

import "errors"

// Sentinel errors returned by the config store, catalog, and engine.
// Callers use errors.Is to distinguish a missing config from other
// failures; HTTP handlers map ErrStreamNotFound to 404.
var (
	// ErrStreamNotFound indicates no stream config row exists for a name.
	ErrStreamNotFound = errors.New("stream config not found")

	// ErrNameRequired indicates a stream config was submitted without a name.
	ErrNameRequired = errors.New("name is required")

	// ErrURLRequired indicates a stream config was submitted without a source URL.
	ErrURLRequired = errors.New("url is required")

	// ErrNameTooLong indicates a stream name exceeds the 63-byte limit.
	ErrNameTooLong = errors.New("name exceeds 63 bytes")

	// ErrSegmentNotFound indicates no recording row exists for an id.
	ErrSegmentNotFound = errors.New("segment not found")
)
