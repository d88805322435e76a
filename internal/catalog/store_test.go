package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
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

func TestStore_InsertAndByID(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	id, err := store.Insert(ctx, &models.Segment{
		StreamName: "cam1",
		FilePath:   "/data/cam1/1000.mp4",
		StartTime:  1000,
		EndTime:    1060,
		SizeBytes:  4096,
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	seg, err := store.ByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cam1", seg.StreamName)
	assert.Equal(t, int64(60), seg.Duration())
}

func TestStore_ByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, nil)
	require.NoError(t, err)

	_, err = store.ByID(context.Background(), 9999)
	assert.ErrorIs(t, err, models.ErrSegmentNotFound)
}

// Three contiguous segments for "cam1" at
// {1000,1060,1120}; a query spanning [1050,1130] must return all three
// in ascending start-time order.
func TestStore_Query_OverlapContract(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	starts := []int64{1000, 1060, 1120}
	for _, start := range starts {
		_, err := store.Insert(ctx, &models.Segment{
			StreamName: "cam1",
			FilePath:   "/data/cam1/seg.mp4",
			StartTime:  start,
			EndTime:    start + 60,
			SizeBytes:  1024,
		})
		require.NoError(t, err)
	}

	segs, err := store.Query(ctx, QueryOptions{
		Stream: "cam1",
		Start:  time.Unix(1050, 0).UTC(),
		End:    time.Unix(1130, 0).UTC(),
	})
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, starts[0], segs[0].StartTime)
	assert.Equal(t, starts[1], segs[1].StartTime)
	assert.Equal(t, starts[2], segs[2].StartTime)
}

// A segment [a,b] is included when queried with t0=b (endpoint inclusive).
func TestStore_Query_EndpointInclusive(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Insert(ctx, &models.Segment{
		StreamName: "cam1", FilePath: "/x.mp4", StartTime: 100, EndTime: 160, SizeBytes: 1,
	})
	require.NoError(t, err)

	segs, err := store.Query(ctx, QueryOptions{
		Stream: "cam1",
		Start:  time.Unix(160, 0).UTC(),
		End:    time.Unix(200, 0).UTC(),
	})
	require.NoError(t, err)
	require.Len(t, segs, 1)
}

func TestStore_Query_StreamFilterIsExact(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Insert(ctx, &models.Segment{StreamName: "cam1", FilePath: "/a.mp4", StartTime: 0, EndTime: 60})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &models.Segment{StreamName: "cam10", FilePath: "/b.mp4", StartTime: 0, EndTime: 60})
	require.NoError(t, err)

	segs, err := store.Query(ctx, QueryOptions{Stream: "cam1"})
	require.NoError(t, err)
	assert.Len(t, segs, 1)
}

func TestStore_Query_RespectsLimit(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Insert(ctx, &models.Segment{
			StreamName: "cam1", FilePath: "/x.mp4", StartTime: int64(i * 60), EndTime: int64(i*60 + 60),
		})
		require.NoError(t, err)
	}

	segs, err := store.Query(ctx, QueryOptions{Stream: "cam1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, segs, 2)
}

func TestStore_Query_DescOrder(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Insert(ctx, &models.Segment{StreamName: "cam1", FilePath: "/a.mp4", StartTime: 0, EndTime: 60})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &models.Segment{StreamName: "cam1", FilePath: "/b.mp4", StartTime: 60, EndTime: 120})
	require.NoError(t, err)

	segs, err := store.Query(ctx, QueryOptions{Stream: "cam1", Order: "desc"})
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, int64(60), segs[0].StartTime)
}

func TestStore_DeleteOlderThan(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Insert(ctx, &models.Segment{StreamName: "cam1", FilePath: "/old.mp4", StartTime: 0, EndTime: 60})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &models.Segment{StreamName: "cam1", FilePath: "/new.mp4", StartTime: 10000, EndTime: 10060})
	require.NoError(t, err)

	n, err := store.DeleteOlderThan(ctx, time.Unix(5000, 0).UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	segs, err := store.Query(ctx, QueryOptions{Stream: "cam1"})
	require.NoError(t, err)
	assert.Len(t, segs, 1)
}

func TestStore_TrimToSize_RemovesOldestFirst(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := store.Insert(ctx, &models.Segment{
			StreamName: "cam1", FilePath: "/x.mp4",
			StartTime: int64(i * 60), EndTime: int64(i*60 + 60), SizeBytes: 1000,
		})
		require.NoError(t, err)
	}

	// 4000 bytes total; capping at 2500 must drop the two oldest rows.
	removed, err := store.TrimToSize(ctx, 2500)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	segs, err := store.Query(ctx, QueryOptions{Stream: "cam1"})
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, int64(120), segs[0].StartTime)
}

func TestStore_TrimToSize_NoopWhenUnderCap(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Insert(ctx, &models.Segment{StreamName: "cam1", FilePath: "/x.mp4", StartTime: 0, EndTime: 60, SizeBytes: 100})
	require.NoError(t, err)

	removed, err := store.TrimToSize(ctx, 1000)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

// Shutdown records a RECORDING_STOP event per closed writer.
func TestStore_RecordEvent_AndEventsFor(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	for _, stream := range []string{"cam1", "cam2", "cam3", "cam4"} {
		require.NoError(t, store.RecordEvent(ctx, models.EventRecordingStop, stream, "", "/data/"+stream+"/1.mp4"))
	}

	events, err := store.EventsFor(ctx, "cam1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventRecordingStop, events[0].Kind)
	assert.Equal(t, "/data/cam1/1.mp4", events[0].FilePath)
}
