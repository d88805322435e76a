package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/tvarr-recorder/internal/models"
	"github.com/jmylchreest/tvarr-recorder/internal/writer"
)

// Source abstracts one stream's packet producer. Actual RTSP/ONVIF
// demuxing lives behind this interface; the recorder only pulls coded
// packets and forwards them to the writer.
type Source interface {
	// ReadPacket blocks until the next coded frame is available. An error
	// wrapped with ErrSourceTransient triggers the recorder's
	// backoff-retry path; any other error is fatal and ends the
	// recorder's run loop.
	ReadPacket(ctx context.Context) (writer.Packet, error)
	Close() error
}

// SourceFactory opens a Source for a stream's resolved URL. The engine
// depends on this interface, not a concrete capture implementation, so
// tests can substitute a fake producer without touching a network or a
// camera.
type SourceFactory interface {
	Open(ctx context.Context, url string, protocol models.Protocol) (Source, error)
}

// syntheticSource stands in for the external capture collaborator. It
// emits small synthetic packets at the factory's frame rate so
// the recorder's full open/rotate/close lifecycle can be driven
// end-to-end without a real camera.
type syntheticSource struct {
	url      string
	interval time.Duration
	seq      atomic.Uint64
}

type syntheticSourceFactory struct {
	fps int
}

// NewSyntheticSourceFactory returns the default SourceFactory, backed by
// syntheticSource. fps sets the synthetic frame cadence for every
// source it opens (25 when fps <= 0); a stream's own configured FPS is
// not consulted.
func NewSyntheticSourceFactory(fps int) SourceFactory {
	if fps <= 0 {
		fps = 25
	}
	return &syntheticSourceFactory{fps: fps}
}

func (f *syntheticSourceFactory) Open(_ context.Context, url string, _ models.Protocol) (Source, error) {
	interval := time.Second / time.Duration(f.fps)
	return &syntheticSource{url: url, interval: interval}, nil
}

func (s *syntheticSource) ReadPacket(ctx context.Context) (writer.Packet, error) {
	select {
	case <-ctx.Done():
		return writer.Packet{}, fmt.Errorf("reading packet from %s: %w", s.url, ctx.Err())
	case <-time.After(s.interval):
	}

	n := s.seq.Add(1)
	return writer.Packet{
		Data:     []byte(fmt.Sprintf("frame-%d", n)),
		PTS:      time.Duration(n) * s.interval,
		Keyframe: n%30 == 1,
	}, nil
}

func (s *syntheticSource) Close() error { return nil }
