package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/jmylchreest/tvarr-recorder/internal/catalog"
	"github.com/jmylchreest/tvarr-recorder/internal/playback"
	"github.com/jmylchreest/tvarr-recorder/internal/timeline"
)

// TimelineHandler exposes the timeline segments/manifest/play surface.
// /api/timeline/play is a raw chi route (registered via
// RegisterChiRoutes) because it 302-redirects rather than returning a
// Huma-typed body.
type TimelineHandler struct {
	catalogStore *catalog.Store
	storageRoot  string
}

// NewTimelineHandler constructs a TimelineHandler.
func NewTimelineHandler(catalogStore *catalog.Store, storageRoot string) *TimelineHandler {
	return &TimelineHandler{catalogStore: catalogStore, storageRoot: storageRoot}
}

// Register registers the Huma-typed timeline routes.
func (h *TimelineHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getTimelineSegments",
		Method:      "GET",
		Path:        "/api/timeline/segments",
		Summary:     "List recorded segments overlapping a time range",
		Tags:        []string{"Timeline"},
	}, h.Segments)

	huma.Register(api, huma.Operation{
		OperationID: "getTimelineManifest",
		Method:      "GET",
		Path:        "/api/timeline/manifest",
		Summary:     "Build an HLS-style playlist for a timeline slice",
		Tags:        []string{"Timeline"},
	}, h.Manifest)
}

// RegisterChiRoutes registers /api/timeline/play, which needs a raw
// http.ResponseWriter to issue a 302 redirect.
func (h *TimelineHandler) RegisterChiRoutes(router chi.Router) {
	router.Get("/api/timeline/play", h.play)
}

// segmentResponse is one entry in /api/timeline/segments's response.
type segmentResponse struct {
	ID                  uint64 `json:"id"`
	Stream              string `json:"stream"`
	StartTime           int64  `json:"start_time"`
	EndTime             int64  `json:"end_time"`
	Duration            int64  `json:"duration"`
	Size                string `json:"size"`
	HasDetection        bool   `json:"has_detection"`
	StartTimestamp      string `json:"start_timestamp"`
	EndTimestamp        string `json:"end_timestamp"`
	LocalStartTimestamp string `json:"local_start_timestamp"`
	LocalEndTimestamp   string `json:"local_end_timestamp"`
}

func toSegmentResponse(seg timeline.Segment) segmentResponse {
	start := time.Unix(seg.Start, 0)
	end := time.Unix(seg.End, 0)
	return segmentResponse{
		ID:                  seg.ID,
		Stream:              seg.Stream,
		StartTime:           seg.Start,
		EndTime:             seg.End,
		Duration:            seg.End - seg.Start,
		Size:                formatSize(seg.SizeBytes),
		HasDetection:        seg.HasDetection,
		StartTimestamp:      start.UTC().Format(time.RFC3339),
		EndTimestamp:        end.UTC().Format(time.RFC3339),
		LocalStartTimestamp: start.Local().Format(time.RFC3339),
		LocalEndTimestamp:   end.Local().Format(time.RFC3339),
	}
}

// formatSize renders a byte count for the JSON surface: B below 1024,
// KB below 1024^2, MB below 1024^3, else GB, one decimal place. A
// narrower formatter than config.ByteSize's String (which also knows
// TB and drops whole-number decimals) because this surface pins the
// exact unit ladder and precision.
func formatSize(n int64) string {
	const unit = 1024
	switch {
	case n < unit:
		return fmt.Sprintf("%dB", n)
	case n < unit*unit:
		return fmt.Sprintf("%.1fKB", float64(n)/unit)
	case n < unit*unit*unit:
		return fmt.Sprintf("%.1fMB", float64(n)/(unit*unit))
	default:
		return fmt.Sprintf("%.1fGB", float64(n)/(unit*unit*unit))
	}
}

// SegmentsInput carries /api/timeline/segments's query parameters.
type SegmentsInput struct {
	Stream string `query:"stream"`
	Start  string `query:"start"`
	End    string `query:"end"`
}

// SegmentsOutput is the JSON body for /api/timeline/segments.
type SegmentsOutput struct {
	Body struct {
		Stream       string            `json:"stream"`
		StartTime    int64             `json:"start_time"`
		EndTime      int64             `json:"end_time"`
		SegmentCount int               `json:"segment_count"`
		Segments     []segmentResponse `json:"segments"`
	}
}

// Segments resolves (stream, [start,end]) to the overlapping segments,
// tolerating malformed time parameters by falling back to the now-24h
// / now defaults rather than erroring. /api/timeline/play is stricter:
// a bad start there is a hard 400.
func (h *TimelineHandler) Segments(ctx context.Context, input *SegmentsInput) (*SegmentsOutput, error) {
	now := time.Now()
	defaultStart, defaultEnd := timeline.DefaultRange(now)

	t0 := defaultStart
	if input.Start != "" {
		if parsed, err := timeline.ParseTimeParam(input.Start, false); err == nil {
			t0 = parsed
		}
	}
	t1 := defaultEnd
	if input.End != "" {
		if parsed, err := timeline.ParseTimeParam(input.End, true); err == nil {
			t1 = parsed
		}
	}

	segs, err := timeline.Query(ctx, h.catalogStore, input.Stream, t0, t1, 0)
	if err != nil {
		return nil, huma.Error500InternalServerError("querying timeline", err)
	}

	out := &SegmentsOutput{}
	out.Body.Stream = input.Stream
	out.Body.StartTime = t0.Unix()
	out.Body.EndTime = t1.Unix()
	out.Body.SegmentCount = len(segs)
	out.Body.Segments = make([]segmentResponse, len(segs))
	for i, seg := range segs {
		out.Body.Segments[i] = toSegmentResponse(seg)
	}
	return out, nil
}

// ManifestInput carries /api/timeline/manifest's query parameters.
type ManifestInput struct {
	Stream string `query:"stream"`
	Start  string `query:"start"`
	End    string `query:"end"`
}

// ManifestOutput returns the playlist body as text.
type ManifestOutput struct {
	ContentType string `header:"Content-Type"`
	Connection  string `header:"Connection"`
	CacheControl string `header:"Cache-Control"`
	Body        []byte
}

// Manifest resolves a timeline slice to segments, writes the HLS
// playlist via playback.BuildManifest, and streams its contents back.
func (h *TimelineHandler) Manifest(ctx context.Context, input *ManifestInput) (*ManifestOutput, error) {
	now := time.Now()
	defaultStart, defaultEnd := timeline.DefaultRange(now)

	t0 := defaultStart
	if input.Start != "" {
		if parsed, err := timeline.ParseTimeParam(input.Start, false); err == nil {
			t0 = parsed
		}
	}
	t1 := defaultEnd
	if input.End != "" {
		if parsed, err := timeline.ParseTimeParam(input.End, true); err == nil {
			t1 = parsed
		}
	}

	segs, err := timeline.Query(ctx, h.catalogStore, input.Stream, t0, t1, 0)
	if err != nil {
		return nil, huma.Error500InternalServerError("querying timeline", err)
	}
	if len(segs) == 0 {
		return nil, huma.Error404NotFound("no segments in range for stream " + input.Stream)
	}

	path, err := playback.BuildManifest(segs, t0, input.Stream, h.storageRoot)
	if err != nil {
		return nil, huma.Error500InternalServerError("building manifest", err)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, huma.Error500InternalServerError("reading manifest", err)
	}

	return &ManifestOutput{
		ContentType:  "application/vnd.apple.mpegurl",
		Connection:   "close",
		CacheControl: "no-cache",
		Body:         body,
	}, nil
}

// play resolves the entry segment for a timestamp and 302-redirects to
// its per-recording playback endpoint.
func (h *TimelineHandler) play(w http.ResponseWriter, r *http.Request) {
	stream := r.URL.Query().Get("stream")
	startParam := r.URL.Query().Get("start")

	if startParam == "" {
		http.Error(w, `{"error":"start is required"}`, http.StatusBadRequest)
		return
	}
	at, err := timeline.ParseTimeParam(startParam, false)
	if err != nil {
		http.Error(w, `{"error":"invalid start timestamp"}`, http.StatusBadRequest)
		return
	}

	// Query a day either side of the requested instant so the
	// containing-or-next-later selection has candidates to work with.
	segs, err := timeline.Query(r.Context(), h.catalogStore, stream, at.Add(-24*time.Hour), at.Add(24*time.Hour), 0)
	if err != nil {
		http.Error(w, `{"error":"querying timeline"}`, http.StatusInternalServerError)
		return
	}
	if len(segs) == 0 {
		http.Error(w, `{"error":"no recordings found"}`, http.StatusNotFound)
		return
	}

	seg, _ := playback.ResolveAtStartTime(segs, at)
	http.Redirect(w, r, fmt.Sprintf("/api/recordings/play/%d", seg.ID), http.StatusFound)
}
