package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/jmylchreest/tvarr-recorder/internal/catalog"
	"github.com/jmylchreest/tvarr-recorder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTimelineDB(t *testing.T) *catalog.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := catalog.New(db, nil)
	require.NoError(t, err)
	return store
}

// newTestAPI wires a TimelineHandler onto a fresh chi router/Huma API pair,
// the same humachi.New combination server.go uses for the real server.
func newTestAPI(t *testing.T, handler *TimelineHandler) *chi.Mux {
	t.Helper()
	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("test", "0"))
	handler.Register(api)
	handler.RegisterChiRoutes(router)
	return router
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512B", formatSize(512))
	assert.Equal(t, "1.5KB", formatSize(1536))
	assert.Equal(t, "2.0MB", formatSize(2*1024*1024))
	assert.Equal(t, "1.0GB", formatSize(1024*1024*1024))
}

func TestTimelineHandler_Segments(t *testing.T) {
	store := setupTimelineDB(t)
	ctx := context.Background()

	now := time.Now()
	_, err := store.Insert(ctx, &models.Segment{
		StreamName: "cam1",
		FilePath:   "/data/cam1/seg.mp4",
		StartTime:  now.Add(-time.Hour).Unix(),
		EndTime:    now.Add(-time.Hour + time.Minute).Unix(),
		SizeBytes:  2048,
	})
	require.NoError(t, err)

	router := newTestAPI(t, NewTimelineHandler(store, t.TempDir()))

	req := httptest.NewRequest(http.MethodGet, "/api/timeline/segments?stream=cam1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stream":"cam1"`)
}

func TestTimelineHandler_Segments_MalformedTimeFallsBackToDefaultRange(t *testing.T) {
	store := setupTimelineDB(t)
	router := newTestAPI(t, NewTimelineHandler(store, t.TempDir()))

	req := httptest.NewRequest(http.MethodGet, "/api/timeline/segments?stream=cam1&start=not-a-time&end=also-not-a-time", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTimelineHandler_Manifest_NoSegments404s(t *testing.T) {
	store := setupTimelineDB(t)
	router := newTestAPI(t, NewTimelineHandler(store, t.TempDir()))

	req := httptest.NewRequest(http.MethodGet, "/api/timeline/manifest?stream=empty-stream", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTimelineHandler_Manifest_BuildsPlaylist(t *testing.T) {
	store := setupTimelineDB(t)
	ctx := context.Background()
	now := time.Now()

	_, err := store.Insert(ctx, &models.Segment{
		StreamName: "cam1",
		FilePath:   "/data/cam1/seg.mp4",
		StartTime:  now.Add(-time.Hour).Unix(),
		EndTime:    now.Add(-time.Hour + time.Minute).Unix(),
		SizeBytes:  2048,
	})
	require.NoError(t, err)

	root := t.TempDir()
	router := newTestAPI(t, NewTimelineHandler(store, root))

	req := httptest.NewRequest(http.MethodGet, "/api/timeline/manifest?stream=cam1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apple.mpegurl", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "#EXTM3U")

	entries, err := os.ReadDir(root + "/timeline_manifests")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTimelineHandler_Play_RedirectsToMatchingSegment(t *testing.T) {
	store := setupTimelineDB(t)
	ctx := context.Background()
	now := time.Now()

	id, err := store.Insert(ctx, &models.Segment{
		StreamName: "cam1",
		FilePath:   "/data/cam1/seg.mp4",
		StartTime:  now.Add(-time.Hour).Unix(),
		EndTime:    now.Add(-time.Hour + time.Minute).Unix(),
		SizeBytes:  2048,
	})
	require.NoError(t, err)

	router := newTestAPI(t, NewTimelineHandler(store, t.TempDir()))

	startParam := now.Add(-time.Hour + 30*time.Second).Unix()
	req := httptest.NewRequest(http.MethodGet, "/api/timeline/play?stream=cam1&start="+strconv.FormatInt(startParam, 10), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/api/recordings/play/"+strconv.FormatUint(id, 10), rec.Header().Get("Location"))
}

func TestTimelineHandler_Play_MissingStartIsBadRequest(t *testing.T) {
	store := setupTimelineDB(t)
	router := newTestAPI(t, NewTimelineHandler(store, t.TempDir()))

	req := httptest.NewRequest(http.MethodGet, "/api/timeline/play?stream=cam1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
