package timeline

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/tvarr-recorder/internal/catalog"
	"github.com/jmylchreest/tvarr-recorder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

// timeline("cam1", 1050, 1130) returns all 3 rows
// in start-time order after three 60s segments at {1000,1060,1120}.
func TestQuery_ReturnsOverlappingSegmentsInOrder(t *testing.T) {
	store, err := catalog.New(setupTestDB(t), nil)
	require.NoError(t, err)
	ctx := context.Background()

	for _, start := range []int64{1000, 1060, 1120} {
		_, err := store.Insert(ctx, &models.Segment{
			StreamName: "cam1", FilePath: "/x.mp4", StartTime: start, EndTime: start + 60,
		})
		require.NoError(t, err)
	}

	segs, err := Query(ctx, store, "cam1", time.Unix(1050, 0), time.Unix(1130, 0), 100)
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, int64(1000), segs[0].Start)
	assert.Equal(t, int64(1060), segs[1].Start)
	assert.Equal(t, int64(1120), segs[2].Start)
	assert.False(t, segs[0].HasDetection)
}

func TestParseTimeParam_EpochSeconds(t *testing.T) {
	got, err := ParseTimeParam("1700000000", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), got.Unix())
}

func TestParseTimeParam_ISO8601Variants(t *testing.T) {
	cases := []string{
		"2024-01-02T03:04:05Z",
		"2024-01-02T03:04:05.000Z",
		"2024-01-02T03:04:05",
	}
	for _, raw := range cases {
		_, err := ParseTimeParam(raw, false)
		assert.NoError(t, err, raw)
	}
}

func TestParseTimeParam_PercentEncodedColons(t *testing.T) {
	got, err := ParseTimeParam("2024-01-02T03%3A04%3A05Z", false)
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year())
}

// A bare date expands to 00:00:00 local for start and
// 23:59:59 local for end.
func TestParseTimeParam_BareDateExpandsToDayBounds(t *testing.T) {
	start, err := ParseTimeParam("2024-03-15", false)
	require.NoError(t, err)
	local := start.Local()
	assert.Equal(t, 0, local.Hour())
	assert.Equal(t, 0, local.Minute())
	assert.Equal(t, 0, local.Second())

	end, err := ParseTimeParam("2024-03-15", true)
	require.NoError(t, err)
	localEnd := end.Local()
	assert.Equal(t, 23, localEnd.Hour())
	assert.Equal(t, 59, localEnd.Minute())
	assert.Equal(t, 59, localEnd.Second())
}

func TestParseTimeParam_RelativeExpression(t *testing.T) {
	before := time.Now().Add(-2 * time.Hour)
	got, err := ParseTimeParam("2 hours ago", false)
	require.NoError(t, err)
	after := time.Now().Add(-2 * time.Hour)
	assert.False(t, got.Before(before.Add(-time.Second)))
	assert.False(t, got.After(after.Add(time.Second)))
}

func TestParseRelative(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2 hours ago", now.Add(-2 * time.Hour)},
		{"30m ago", now.Add(-30 * time.Minute)},
		{"1 day ago", now.Add(-24 * time.Hour)},
		{"in 2 weeks", now.Add(14 * 24 * time.Hour)},
		{"5 minutes from now", now.Add(5 * time.Minute)},
		{"1.5h ago", now.Add(-90 * time.Minute)},
	}
	for _, tt := range tests {
		got, ok := parseRelative(tt.in, now)
		require.True(t, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseRelative_Rejects(t *testing.T) {
	now := time.Now()
	for _, in := range []string{"2 hours", "ago", "in 2 hours ago", "yesterday", "2 fortnights ago"} {
		_, ok := parseRelative(in, now)
		assert.False(t, ok, in)
	}
}

func TestParseTimeParam_UnrecognizedFormatErrors(t *testing.T) {
	_, err := ParseTimeParam("not-a-time", false)
	assert.Error(t, err)
}

func TestDefaultRange_IsLast24Hours(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	start, end := DefaultRange(now)
	assert.Equal(t, now, end)
	assert.Equal(t, now.Add(-24*time.Hour), start)
}
