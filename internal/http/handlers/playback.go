package handlers

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jmylchreest/tvarr-recorder/internal/catalog"
	"github.com/jmylchreest/tvarr-recorder/internal/models"
	"github.com/jmylchreest/tvarr-recorder/internal/playback"
)

// PlaybackHandler serves individual recordings, registered as a raw
// chi route rather than through Huma because it streams a file body
// with Range support via http.ServeContent.
type PlaybackHandler struct {
	catalogStore *catalog.Store
	dedup        *playback.Dedup
}

// NewPlaybackHandler constructs a PlaybackHandler.
func NewPlaybackHandler(catalogStore *catalog.Store, dedup *playback.Dedup) *PlaybackHandler {
	return &PlaybackHandler{catalogStore: catalogStore, dedup: dedup}
}

// RegisterChiRoutes registers GET /api/recordings/play/{id}.
func (h *PlaybackHandler) RegisterChiRoutes(router chi.Router) {
	router.Get("/api/recordings/play/{id}", h.play)
}

// play resolves {id} to a recording row and streams its file,
// enforcing the dedup table's one-in-flight-per-id rule: 400 on a
// non-numeric id, 404 on a missing row or vanished file, 429 on a
// duplicate in-flight request for the same id, 503 when the dedup table
// is at capacity. Deactivate runs on every exit path via defer,
// regardless of which of those outcomes occurs.
func (h *PlaybackHandler) play(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		http.Error(w, `{"error":"invalid recording id"}`, http.StatusBadRequest)
		return
	}

	if err := h.dedup.TryActivate(int64(id)); err != nil {
		switch {
		case errors.Is(err, playback.ErrDuplicate):
			http.Error(w, `{"error":"request already in flight for this recording"}`, http.StatusTooManyRequests)
		case errors.Is(err, playback.ErrOverflow):
			http.Error(w, `{"error":"playback request table is full"}`, http.StatusServiceUnavailable)
		default:
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	defer h.dedup.Deactivate(int64(id))

	seg, err := h.catalogStore.ByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrSegmentNotFound) {
			http.Error(w, `{"error":"recording not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	if _, err := os.Stat(seg.FilePath); err != nil {
		http.Error(w, `{"error":"recording file is missing"}`, http.StatusNotFound)
		return
	}

	rec := playback.Recording{ID: seg.ID, FilePath: seg.FilePath}
	if err := playback.PlayRecording(w, r, rec); err != nil {
		http.Error(w, `{"error":"serving recording"}`, http.StatusInternalServerError)
	}
}
