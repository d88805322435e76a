package writer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// fileWriter is the default Writer: it appends raw packet bytes to an
// os.File named for the segment. It does not author MP4 boxes, but it
// exercises the full open/append/close/stat lifecycle the recorder
// engine drives, so rotation, registry handoff, and catalog insertion
// can be tested end-to-end without a real encoder in the loop.
type fileWriter struct {
	path   string
	logger *slog.Logger

	f         *os.File
	size      atomic.Int64
	closeOnce sync.Once
	closeErr  error
}

// fileFactory constructs fileWriters. It is the default writer.Factory
// wired by the engine when no other collaborator is configured.
type fileFactory struct {
	logger *slog.Logger
}

// NewFileFactory returns the default Factory, backed by fileWriter.
func NewFileFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &fileFactory{logger: logger}
}

// Open creates the container file and writes a minimal header.
func (f *fileFactory) Open(_ context.Context, path string, params Params) (Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating recording directory for %s: %w", path, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening writer for %s: %w", path, err)
	}

	w := &fileWriter{path: path, f: file, logger: f.logger}
	header := containerHeader(params)
	if len(header) > 0 {
		if _, err := file.Write(header); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("writing container header for %s: %w", path, err)
		}
		w.size.Add(int64(len(header)))
	}
	return w, nil
}

// containerHeader stands in for the ftyp/moov atoms a real muxer would
// author from the negotiated codec parameters.
func containerHeader(params Params) []byte {
	return []byte(fmt.Sprintf("FTYP codec=%s fps=%d audio=%t\n", params.Codec, params.FPS, params.RecordAudio))
}

// WritePacket appends one coded frame. Ordering is the caller's
// responsibility.
func (w *fileWriter) WritePacket(_ context.Context, pkt Packet) error {
	n, err := w.f.Write(pkt.Data)
	if err != nil {
		return fmt.Errorf("writing packet to %s: %w", w.path, err)
	}
	w.size.Add(int64(n))
	return nil
}

// Close finalizes and releases the file handle. Idempotent: a second
// call logs a warning instead of erroring.
func (w *fileWriter) Close() error {
	first := false
	w.closeOnce.Do(func() {
		first = true
		if err := w.f.Sync(); err != nil {
			w.closeErr = fmt.Errorf("flushing %s: %w", w.path, err)
			return
		}
		if err := w.f.Close(); err != nil {
			w.closeErr = fmt.Errorf("closing %s: %w", w.path, err)
		}
	})
	if !first {
		w.logger.Warn("writer already closed", slog.String("path", w.path))
		return nil
	}
	return w.closeErr
}

// OutputPath returns the path this writer targets. It stays non-empty
// for the writer's entire lifetime; the registry depends on that.
func (w *fileWriter) OutputPath() string {
	return w.path
}

// Size returns bytes written so far.
func (w *fileWriter) Size() int64 {
	return w.size.Load()
}
