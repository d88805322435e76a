package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/tvarr-recorder/internal/catalog"
	"github.com/jmylchreest/tvarr-recorder/internal/config"
	"github.com/jmylchreest/tvarr-recorder/internal/models"
	"github.com/jmylchreest/tvarr-recorder/internal/ringbuffer"
	"github.com/jmylchreest/tvarr-recorder/internal/writer"
)

// recorderState tracks the lifecycle: idle -> opening -> running
// -> {rotating -> running, stopping} -> terminated, with a failed
// branch out of opening.
type recorderState int32

const (
	stateIdle recorderState = iota
	stateOpening
	stateRunning
	stateRotating
	stateStopping
	stateFailed
	stateTerminated
)

func (s recorderState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateOpening:
		return "opening"
	case stateRunning:
		return "running"
	case stateRotating:
		return "rotating"
	case stateStopping:
		return "stopping"
	case stateFailed:
		return "failed"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Recorder drives one stream's capture-to-disk loop on its own
// goroutine: open a writer, pull packets from the source, rotate
// segments on schedule, and persist a catalog row per finished file.
type Recorder struct {
	name        string
	cfg         models.StreamConfig
	url         string
	storageRoot string
	recorderCfg config.RecorderConfig

	writerFactory writer.Factory
	sourceFactory SourceFactory
	registry      *Registry
	catalogStore  *catalog.Store
	logger        *slog.Logger

	state   atomic.Int32
	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped sync.Once

	currentWriter writer.Writer
	currentRing   *ringbuffer.Buffer
	segmentStart  time.Time
}

func newRecorder(name string, cfg models.StreamConfig, url, storageRoot string, wf writer.Factory, sf SourceFactory, reg *Registry, cat *catalog.Store, rc config.RecorderConfig, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		name:          name,
		cfg:           cfg,
		url:           url,
		storageRoot:   storageRoot,
		recorderCfg:   rc,
		writerFactory: wf,
		sourceFactory: sf,
		registry:      reg,
		catalogStore:  cat,
		logger:        logger.With(slog.String("stream", name)),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	r.running.Store(true)
	r.state.Store(int32(stateIdle))
	return r
}

func (r *Recorder) setState(s recorderState) {
	r.state.Store(int32(s))
}

// State reports the recorder's current lifecycle state.
func (r *Recorder) State() string {
	return recorderState(r.state.Load()).String()
}

// start spawns the recorder goroutine. The caller (Engine) has already
// loaded the stream config, resolved the input URL, and constructed
// this Recorder.
func (r *Recorder) start(ctx context.Context) {
	go r.run(ctx)
}

// Stop clears the running flag, signals the loop, and blocks until it
// exits. Idempotent: repeated calls are safe.
func (r *Recorder) Stop() {
	r.running.Store(false)
	r.stopped.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

func (r *Recorder) segmentPath(at time.Time) string {
	return filepath.Join(r.storageRoot, r.name, fmt.Sprintf("%d.mp4", at.Unix()))
}

func (r *Recorder) writerParams() writer.Params {
	return writer.Params{
		Width:       r.cfg.Width,
		Height:      r.cfg.Height,
		FPS:         r.cfg.FPS,
		Codec:       r.cfg.Codec,
		RecordAudio: r.cfg.RecordAudio,
	}
}

func (r *Recorder) segmentDuration() time.Duration {
	d := r.cfg.SegmentDuration
	if d <= 0 {
		d = r.recorderCfg.DefaultSegmentDuration
	}
	if d <= 0 {
		d = 60
	}
	return time.Duration(d) * time.Second
}

// prebufferCapacity computes the ring buffer size, or 0 when
// pre-buffering is not configured for this stream.
func (r *Recorder) prebufferCapacity() int {
	if r.cfg.PreDetectionBuffer <= 0 || r.cfg.FPS <= 0 {
		return 0
	}
	max := r.recorderCfg.MaxPrebufferFrames
	if max <= 0 {
		max = 750
	}
	return ringbuffer.Capacity(float64(r.cfg.PreDetectionBuffer), r.cfg.FPS, max)
}

// run is the recorder loop.
func (r *Recorder) run(ctx context.Context) {
	defer close(r.doneCh)
	r.setState(stateOpening)

	path := r.segmentPath(time.Now())
	w, err := r.writerFactory.Open(ctx, path, r.writerParams())
	if err != nil {
		r.logger.Error("opening writer failed", slog.Any("error", err))
		r.setState(stateFailed)
		return
	}

	var ring *ringbuffer.Buffer
	if capFrames := r.prebufferCapacity(); capFrames > 0 {
		ring = ringbuffer.New(capFrames)
	}
	if err := r.registry.Register(r.name, w, ring); err != nil {
		r.logger.Error("registering writer failed", slog.Any("error", err))
		_ = w.Close()
		r.setState(stateFailed)
		return
	}

	r.currentWriter = w
	r.currentRing = ring
	r.segmentStart = time.Now()
	r.setState(stateRunning)
	if err := r.catalogStore.RecordEvent(ctx, models.EventRecordingStart, r.name, "", path); err != nil {
		r.logger.Error("recording start event failed", slog.Any("error", err))
	}

	source, err := r.sourceFactory.Open(ctx, r.url, r.cfg.Protocol)
	if err != nil {
		r.logger.Error("opening source failed", slog.Any("error", err))
		r.setState(stateStopping)
		r.finalize(ctx)
		r.setState(stateTerminated)
		return
	}
	defer source.Close()

	retries := 0
	retryLimit := r.recorderCfg.SourceRetryLimit
	retryDelay := r.recorderCfg.SourceRetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	for r.running.Load() {
		pkt, err := source.ReadPacket(ctx)
		if err != nil {
			if IsTransient(err) {
				retries++
				if retryLimit > 0 && retries > retryLimit {
					r.logger.Warn("exceeded source retry limit, stopping", slog.Int("retries", retries))
					break
				}
				r.logger.Warn("transient source error, retrying", slog.Any("error", err))
				select {
				case <-time.After(retryDelay):
				case <-r.stopCh:
					r.running.Store(false)
				}
				continue
			}
			if !errors.Is(err, context.Canceled) {
				r.logger.Error("fatal source error, stopping", slog.Any("error", err))
			}
			break
		}
		retries = 0

		if err := r.currentWriter.WritePacket(ctx, pkt); err != nil {
			r.logger.Error("write packet failed, stopping", slog.Any("error", err))
			break
		}
		if r.currentRing != nil {
			_ = r.currentRing.Push(ringbuffer.Frame{Data: pkt.Data, PTS: pkt.PTS, Keyframe: pkt.Keyframe})
		}

		if time.Since(r.segmentStart) >= r.segmentDuration() {
			r.setState(stateRotating)
			if err := r.rotate(ctx); err != nil {
				r.logger.Error("segment rotation failed, stopping", slog.Any("error", err))
				break
			}
			r.setState(stateRunning)
		}

		select {
		case <-r.stopCh:
			r.running.Store(false)
		default:
		}
	}

	r.setState(stateStopping)
	r.finalize(ctx)
	r.setState(stateTerminated)
}

// rotate finalizes the current writer and opens the next segment's
// writer, re-registering it with the registry. Registry.Register swaps
// the slot and closes the previous writer outside the registry lock,
// so the old writer is closed by the time Register returns.
func (r *Recorder) rotate(ctx context.Context) error {
	oldWriter := r.currentWriter
	oldStart := r.segmentStart

	newPath := r.segmentPath(time.Now())
	newWriter, err := r.writerFactory.Open(ctx, newPath, r.writerParams())
	if err != nil {
		return fmt.Errorf("opening rotated writer for %s: %w", r.name, err)
	}

	var newRing *ringbuffer.Buffer
	if capFrames := r.prebufferCapacity(); capFrames > 0 {
		newRing = ringbuffer.New(capFrames)
	}

	if err := r.registry.Register(r.name, newWriter, newRing); err != nil {
		_ = newWriter.Close()
		return fmt.Errorf("registering rotated writer for %s: %w", r.name, err)
	}

	r.insertSegmentRow(ctx, oldWriter, oldStart, time.Now())

	r.currentWriter = newWriter
	r.currentRing = newRing
	r.segmentStart = time.Now()
	return nil
}

// insertSegmentRow persists the completed segment. If the file cannot
// be stat'd the row is still inserted with the writer's last known
// size, and an anomaly event marks it for human review. w is assumed
// already closed by the caller.
func (r *Recorder) insertSegmentRow(ctx context.Context, w writer.Writer, start, end time.Time) {
	path := w.OutputPath()
	size := w.Size()
	anomaly := false
	note := ""

	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	} else {
		anomaly = true
		note = fmt.Sprintf("stat failed: %v", err)
	}

	seg := &models.Segment{
		StreamName:  r.name,
		FilePath:    path,
		StartTime:   start.Unix(),
		EndTime:     end.Unix(),
		SizeBytes:   size,
		Anomaly:     anomaly,
		AnomalyNote: note,
	}
	if _, err := r.catalogStore.Insert(ctx, seg); err != nil {
		r.logger.Error("inserting segment row failed", slog.Any("error", err))
		return
	}
	if anomaly {
		if err := r.catalogStore.RecordEvent(ctx, models.EventRecordingAnomaly, r.name, note, path); err != nil {
			r.logger.Error("recording anomaly event failed", slog.Any("error", err))
		}
	}
}

// finalize unregisters the writer, closes it exactly once, and
// persists the final segment row. Unregister never closes the writer
// itself; ownership returns here, so this recorder is the sole closer.
// If Unregister hands back nothing, a concurrent CloseAll already
// finalized the handle and this recorder must not touch it again.
func (r *Recorder) finalize(ctx context.Context) {
	w, _ := r.registry.Unregister(r.name)
	if w == nil {
		r.currentWriter = nil
		return
	}
	start := r.segmentStart
	path := w.OutputPath()

	closeErr := w.Close()
	if closeErr != nil {
		r.logger.Error("closing writer failed", slog.Any("error", closeErr))
	}

	size := w.Size()
	anomaly := closeErr != nil
	note := ""
	if closeErr != nil {
		note = fmt.Sprintf("writer finalize failed: %v", closeErr)
	}

	info, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		size = info.Size()
	case !anomaly:
		// File is gone and close reported success: nothing meaningful
		// to register in the catalog.
		r.logger.Warn("segment file missing at finalize", slog.String("path", path), slog.Any("error", statErr))
		r.currentWriter = nil
		return
	}

	if size == 0 && !anomaly {
		r.logger.Warn("final segment empty, skipping catalog insert")
		r.currentWriter = nil
		return
	}

	seg := &models.Segment{
		StreamName:  r.name,
		FilePath:    path,
		StartTime:   start.Unix(),
		EndTime:     time.Now().Unix(),
		SizeBytes:   size,
		Anomaly:     anomaly,
		AnomalyNote: note,
	}
	if _, err := r.catalogStore.Insert(ctx, seg); err != nil {
		r.logger.Error("inserting final segment row failed", slog.Any("error", err))
	}
	if anomaly {
		if err := r.catalogStore.RecordEvent(ctx, models.EventRecordingAnomaly, r.name, note, path); err != nil {
			r.logger.Error("recording anomaly event failed", slog.Any("error", err))
		}
	}
	if err := r.catalogStore.RecordEvent(ctx, models.EventRecordingStop, r.name, "", path); err != nil {
		r.logger.Error("recording stop event failed", slog.Any("error", err))
	}
	r.currentWriter = nil
}
