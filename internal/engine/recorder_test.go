package engine

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmylchreest/tvarr-recorder/internal/catalog"
	"github.com/jmylchreest/tvarr-recorder/internal/config"
	"github.com/jmylchreest/tvarr-recorder/internal/models"
	"github.com/jmylchreest/tvarr-recorder/internal/writer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastSource sleeps only 2ms per packet, so rotation boundaries fire on
// wall-clock time rather than waiting on a real frame cadence.
type fastSource struct {
	seq int
}

func (s *fastSource) ReadPacket(ctx context.Context) (writer.Packet, error) {
	if err := ctx.Err(); err != nil {
		return writer.Packet{}, err
	}
	time.Sleep(2 * time.Millisecond)
	s.seq++
	return writer.Packet{Data: []byte(fmt.Sprintf("f%d", s.seq))}, nil
}
func (s *fastSource) Close() error { return nil }

type fastSourceFactory struct{}

func (fastSourceFactory) Open(context.Context, string, models.Protocol) (Source, error) {
	return &fastSource{}, nil
}

// flakySource fails transiently a fixed number of times before returning
// a fatal error.
type flakySource struct {
	transientLeft int
}

func (s *flakySource) ReadPacket(context.Context) (writer.Packet, error) {
	if s.transientLeft > 0 {
		s.transientLeft--
		return writer.Packet{}, fmt.Errorf("source hiccup: %w", ErrSourceTransient)
	}
	return writer.Packet{}, fmt.Errorf("source gone for good")
}
func (s *flakySource) Close() error { return nil }

type flakySourceFactory struct{ transientLeft int }

func (f flakySourceFactory) Open(context.Context, string, models.Protocol) (Source, error) {
	return &flakySource{transientLeft: f.transientLeft}, nil
}

func newTestRecorder(t *testing.T, sf SourceFactory, recorderCfg config.RecorderConfig) (*Recorder, *catalog.Store, string) {
	t.Helper()
	dir := t.TempDir()
	db := setupCatalogDB(t)
	store, err := catalog.New(db, nil)
	require.NoError(t, err)

	registry := NewRegistry(4, store, nil)
	cfg := models.StreamConfig{
		Name:            "cam1",
		URL:             "fake://cam1",
		Width:           640,
		Height:          480,
		FPS:             25,
		Codec:           "h264",
		SegmentDuration: 1,
	}
	rec := newRecorder("cam1", cfg, cfg.URL, dir, writer.NewFileFactory(nil), sf, registry, store, recorderCfg, nil)
	return rec, store, dir
}

// Exercises the full lifecycle: open -> running -> rotating -> running
// -> stopping -> terminated, producing multiple on-disk segments with
// a non-zero size within a few wall-clock seconds.
func TestRecorder_RotatesSegmentsAndPersistsCatalogRows(t *testing.T) {
	recorderCfg := config.RecorderConfig{DefaultSegmentDuration: 60, MaxPrebufferFrames: 750}
	rec, store, _ := newTestRecorder(t, fastSourceFactory{}, recorderCfg)

	ctx := context.Background()
	rec.start(ctx)
	time.Sleep(3500 * time.Millisecond)
	rec.Stop()

	assert.Equal(t, "terminated", rec.State())

	segs, err := store.Query(ctx, catalog.QueryOptions{Stream: "cam1"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(segs), 2, "expected at least 2 rotated segments")

	for _, seg := range segs {
		assert.Greater(t, seg.SizeBytes, int64(0))
		info, err := os.Stat(seg.FilePath)
		require.NoError(t, err)
		assert.Equal(t, seg.SizeBytes, info.Size())
	}

	events, err := store.EventsFor(ctx, "cam1", 10)
	require.NoError(t, err)
	var sawStart, sawStop bool
	for _, ev := range events {
		if ev.Kind == models.EventRecordingStart {
			sawStart = true
		}
		if ev.Kind == models.EventRecordingStop {
			sawStop = true
		}
	}
	assert.True(t, sawStart)
	assert.True(t, sawStop)
}

func TestRecorder_StopIsIdempotent(t *testing.T) {
	recorderCfg := config.RecorderConfig{DefaultSegmentDuration: 60, MaxPrebufferFrames: 750}
	rec, _, _ := newTestRecorder(t, fastSourceFactory{}, recorderCfg)

	rec.start(context.Background())
	time.Sleep(50 * time.Millisecond)
	rec.Stop()
	rec.Stop() // must not panic or block forever
}

func TestRecorder_TransientSourceErrorsRetryThenFatalStops(t *testing.T) {
	recorderCfg := config.RecorderConfig{
		DefaultSegmentDuration: 60,
		MaxPrebufferFrames:     750,
		SourceRetryDelay:       5 * time.Millisecond,
		SourceRetryLimit:       3,
	}
	rec, _, _ := newTestRecorder(t, flakySourceFactory{transientLeft: 2}, recorderCfg)

	done := make(chan struct{})
	rec.start(context.Background())
	go func() {
		for rec.State() != "terminated" {
			time.Sleep(5 * time.Millisecond)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not terminate after a fatal source error")
	}
}

func TestRecorder_PrebufferCapacityZeroWhenDisabled(t *testing.T) {
	recorderCfg := config.RecorderConfig{DefaultSegmentDuration: 60, MaxPrebufferFrames: 750}
	rec, _, _ := newTestRecorder(t, fastSourceFactory{}, recorderCfg)
	assert.Equal(t, 0, rec.prebufferCapacity())

	rec.cfg.PreDetectionBuffer = 2
	assert.Equal(t, 50, rec.prebufferCapacity())
}
