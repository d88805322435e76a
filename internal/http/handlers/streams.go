// Package handlers implements recorderd's HTTP API: one file per
// resource, a small struct wrapping the service or store it fronts,
// and a Register method registering its routes.
package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/tvarr-recorder/internal/configstore"
	"github.com/jmylchreest/tvarr-recorder/internal/models"
)

// StreamsHandler exposes CRUD over the stream config store.
type StreamsHandler struct {
	store *configstore.Store
}

// NewStreamsHandler constructs a StreamsHandler over store.
func NewStreamsHandler(store *configstore.Store) *StreamsHandler {
	return &StreamsHandler{store: store}
}

// Register registers the streams CRUD routes with the Huma API.
func (h *StreamsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listStreams",
		Method:      "GET",
		Path:        "/api/streams",
		Summary:     "List stream configs",
		Tags:        []string{"Streams"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getStream",
		Method:      "GET",
		Path:        "/api/streams/{name}",
		Summary:     "Get a stream config",
		Tags:        []string{"Streams"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "addStream",
		Method:      "POST",
		Path:        "/api/streams",
		Summary:     "Add or re-enable a stream config",
		Description: "Adding a stream whose name matches an existing disabled row re-enables and overwrites it instead of inserting a duplicate.",
		Tags:        []string{"Streams"},
	}, h.Add)

	huma.Register(api, huma.Operation{
		OperationID: "updateStream",
		Method:      "PUT",
		Path:        "/api/streams/{name}",
		Summary:     "Update a stream config",
		Tags:        []string{"Streams"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteStream",
		Method:      "DELETE",
		Path:        "/api/streams/{name}",
		Summary:     "Disable or permanently delete a stream config",
		Tags:        []string{"Streams"},
	}, h.Delete)
}

// StreamConfigBody is the wire representation of models.StreamConfig.
type StreamConfigBody struct {
	Name                    string  `json:"name"`
	URL                     string  `json:"url"`
	Enabled                 bool    `json:"enabled"`
	StreamingEnabled        bool    `json:"streaming_enabled"`
	Width                   int     `json:"width"`
	Height                  int     `json:"height"`
	FPS                     int     `json:"fps"`
	Codec                   string  `json:"codec"`
	Priority                int     `json:"priority"`
	Record                  bool    `json:"record"`
	SegmentDuration         int     `json:"segment_duration"`
	DetectionBasedRecording bool    `json:"detection_based_recording"`
	DetectionModel          string  `json:"detection_model"`
	DetectionThreshold      float64 `json:"detection_threshold"`
	DetectionInterval       int     `json:"detection_interval"`
	PreDetectionBuffer      int     `json:"pre_detection_buffer"`
	PostDetectionBuffer     int     `json:"post_detection_buffer"`
	Protocol                string  `json:"protocol"`
	IsONVIF                 bool    `json:"is_onvif"`
	RecordAudio             bool    `json:"record_audio"`
}

func bodyFromModel(cfg *models.StreamConfig) StreamConfigBody {
	return StreamConfigBody{
		Name:                    cfg.Name,
		URL:                     cfg.URL,
		Enabled:                 cfg.Enabled,
		StreamingEnabled:        cfg.StreamingEnabled,
		Width:                   cfg.Width,
		Height:                  cfg.Height,
		FPS:                     cfg.FPS,
		Codec:                   cfg.Codec,
		Priority:                cfg.Priority,
		Record:                  cfg.Record,
		SegmentDuration:         cfg.SegmentDuration,
		DetectionBasedRecording: cfg.DetectionBasedRecording,
		DetectionModel:          cfg.DetectionModel,
		DetectionThreshold:      cfg.DetectionThreshold,
		DetectionInterval:       cfg.DetectionInterval,
		PreDetectionBuffer:      cfg.PreDetectionBuffer,
		PostDetectionBuffer:     cfg.PostDetectionBuffer,
		Protocol:                string(cfg.Protocol),
		IsONVIF:                 cfg.IsONVIF,
		RecordAudio:             cfg.RecordAudio,
	}
}

func (b StreamConfigBody) toModel() *models.StreamConfig {
	return &models.StreamConfig{
		Name:                    b.Name,
		URL:                     b.URL,
		Enabled:                 b.Enabled,
		StreamingEnabled:        b.StreamingEnabled,
		Width:                   b.Width,
		Height:                  b.Height,
		FPS:                     b.FPS,
		Codec:                   b.Codec,
		Priority:                b.Priority,
		Record:                  b.Record,
		SegmentDuration:         b.SegmentDuration,
		DetectionBasedRecording: b.DetectionBasedRecording,
		DetectionModel:          b.DetectionModel,
		DetectionThreshold:      b.DetectionThreshold,
		DetectionInterval:       b.DetectionInterval,
		PreDetectionBuffer:      b.PreDetectionBuffer,
		PostDetectionBuffer:     b.PostDetectionBuffer,
		Protocol:                models.Protocol(b.Protocol),
		IsONVIF:                 b.IsONVIF,
		RecordAudio:             b.RecordAudio,
	}
}

// ListStreamsInput carries the optional result limit.
type ListStreamsInput struct {
	Limit int `query:"limit" doc:"Maximum number of streams to return" default:"100"`
}

// ListStreamsOutput wraps the stream list.
type ListStreamsOutput struct {
	Body struct {
		Streams []StreamConfigBody `json:"streams"`
		Count   int                `json:"count"`
	}
}

// List returns configured streams ordered by priority then name.
func (h *StreamsHandler) List(ctx context.Context, input *ListStreamsInput) (*ListStreamsOutput, error) {
	cfgs, err := h.store.List(ctx, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing streams", err)
	}

	out := &ListStreamsOutput{}
	out.Body.Streams = make([]StreamConfigBody, len(cfgs))
	for i := range cfgs {
		out.Body.Streams[i] = bodyFromModel(&cfgs[i])
	}
	out.Body.Count = len(cfgs)
	return out, nil
}

// GetStreamInput identifies a stream by name.
type GetStreamInput struct {
	Name string `path:"name"`
}

// GetStreamOutput wraps a single stream config.
type GetStreamOutput struct {
	Body StreamConfigBody
}

// Get returns a stream config by name, or 404 if missing.
func (h *StreamsHandler) Get(ctx context.Context, input *GetStreamInput) (*GetStreamOutput, error) {
	cfg, err := h.store.Get(ctx, input.Name)
	if err != nil {
		if errors.Is(err, models.ErrStreamNotFound) {
			return nil, huma.Error404NotFound("stream not found: " + input.Name)
		}
		return nil, huma.Error500InternalServerError("getting stream", err)
	}
	return &GetStreamOutput{Body: bodyFromModel(cfg)}, nil
}

// AddStreamInput carries the stream config to add.
type AddStreamInput struct {
	Body StreamConfigBody
}

// AddStreamOutput returns the assigned id.
type AddStreamOutput struct {
	Body struct {
		ID uint64 `json:"id"`
	}
}

// Add inserts a stream config, reusing a matching disabled row.
func (h *StreamsHandler) Add(ctx context.Context, input *AddStreamInput) (*AddStreamOutput, error) {
	cfg := input.Body.toModel()
	id, err := h.store.Add(ctx, cfg)
	if err != nil {
		return nil, validationOrServerError(err, "adding stream")
	}
	out := &AddStreamOutput{}
	out.Body.ID = id
	return out, nil
}

// UpdateStreamInput carries the name and new body.
type UpdateStreamInput struct {
	Name string `path:"name"`
	Body StreamConfigBody
}

// UpdateStreamOutput wraps the updated config.
type UpdateStreamOutput struct {
	Body StreamConfigBody
}

// Update overwrites the named stream's config.
func (h *StreamsHandler) Update(ctx context.Context, input *UpdateStreamInput) (*UpdateStreamOutput, error) {
	cfg := input.Body.toModel()
	cfg.Name = input.Name
	if err := h.store.Update(ctx, input.Name, cfg); err != nil {
		if errors.Is(err, models.ErrStreamNotFound) {
			return nil, huma.Error404NotFound("stream not found: " + input.Name)
		}
		return nil, validationOrServerError(err, "updating stream")
	}
	return &UpdateStreamOutput{Body: bodyFromModel(cfg)}, nil
}

// DeleteStreamInput identifies the stream and whether the delete is permanent.
type DeleteStreamInput struct {
	Name      string `path:"name"`
	Permanent bool   `query:"permanent" doc:"Remove the row entirely instead of soft-disabling it" default:"false"`
}

// DeleteStreamOutput is empty on success.
type DeleteStreamOutput struct{}

// Delete soft-disables (default) or permanently removes a stream config.
func (h *StreamsHandler) Delete(ctx context.Context, input *DeleteStreamInput) (*DeleteStreamOutput, error) {
	if err := h.store.Delete(ctx, input.Name, input.Permanent); err != nil {
		if errors.Is(err, models.ErrStreamNotFound) {
			return nil, huma.Error404NotFound("stream not found: " + input.Name)
		}
		return nil, huma.Error500InternalServerError("deleting stream", err)
	}
	return &DeleteStreamOutput{}, nil
}

func validationOrServerError(err error, op string) error {
	switch {
	case errors.Is(err, models.ErrNameRequired), errors.Is(err, models.ErrURLRequired), errors.Is(err, models.ErrNameTooLong):
		return huma.Error400BadRequest(err.Error())
	case strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "duplicate key"):
		return huma.Error409Conflict("a stream with this name already exists")
	default:
		return huma.Error500InternalServerError(op, err)
	}
}
