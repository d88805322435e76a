package playback

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmylchreest/tvarr-recorder/internal/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Segments {[100,160],[160,220],[220,280]};
// build_manifest(segs, start=175) chooses segment #2 (index 1) as the
// entry and writes TARGETDURATION = ceil(max(60,60,60)) + 1 = 61.
func TestBuildManifest_TargetDurationAndEntrySelection(t *testing.T) {
	dir := t.TempDir()
	segs := []timeline.Segment{
		{ID: 1, Stream: "cam1", Start: 100, End: 160},
		{ID: 2, Stream: "cam1", Start: 160, End: 220},
		{ID: 3, Stream: "cam1", Start: 220, End: 280},
	}
	startTime := time.Unix(175, 0)

	path, err := BuildManifest(segs, startTime, "cam1", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "#EXTM3U")
	assert.Contains(t, content, "#EXT-X-VERSION:3")
	assert.Contains(t, content, "#EXT-X-TARGETDURATION:61")
	assert.Contains(t, content, "#EXT-X-MEDIA-SEQUENCE:0")
	assert.Contains(t, content, "#EXT-X-ALLOW-CACHE:YES")
	assert.Contains(t, content, "/api/timeline/play?stream=cam1&start=175")
	assert.Contains(t, content, "#EXT-X-ENDLIST")

	entry, ok := ResolveAtStartTime(segs, startTime)
	require.True(t, ok)
	assert.Equal(t, uint64(2), entry.ID)
}

func TestBuildManifest_WritesUnderTimelineManifestsDir(t *testing.T) {
	dir := t.TempDir()
	segs := []timeline.Segment{{ID: 1, Stream: "cam1", Start: 0, End: 60}}

	path, err := BuildManifest(segs, time.Unix(30, 0), "cam1", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "timeline_manifests"), filepath.Dir(path))
}

func TestBuildManifest_NoSegmentsErrors(t *testing.T) {
	_, err := BuildManifest(nil, time.Unix(0, 0), "cam1", t.TempDir())
	assert.Error(t, err)
}

func TestResolveAtStartTime_ContainingSegmentWins(t *testing.T) {
	segs := []timeline.Segment{
		{ID: 1, Start: 0, End: 60},
		{ID: 2, Start: 60, End: 120},
	}
	got, ok := ResolveAtStartTime(segs, time.Unix(90, 0))
	require.True(t, ok)
	assert.Equal(t, uint64(2), got.ID)
}

func TestResolveAtStartTime_FallsBackToFirstLater(t *testing.T) {
	segs := []timeline.Segment{
		{ID: 1, Start: 0, End: 60},
		{ID: 2, Start: 200, End: 260},
	}
	got, ok := ResolveAtStartTime(segs, time.Unix(100, 0))
	require.True(t, ok)
	assert.Equal(t, uint64(2), got.ID)
}

func TestResolveAtStartTime_FallsBackToFirst(t *testing.T) {
	segs := []timeline.Segment{
		{ID: 1, Start: 0, End: 60},
		{ID: 2, Start: 60, End: 120},
	}
	got, ok := ResolveAtStartTime(segs, time.Unix(1000, 0))
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.ID)
}

func TestResolveAtStartTime_EmptyReturnsFalse(t *testing.T) {
	_, ok := ResolveAtStartTime(nil, time.Unix(0, 0))
	assert.False(t, ok)
}
