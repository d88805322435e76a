// Package ringbuffer implements the bounded pre-detection frame cache:
// a fixed-capacity FIFO of recently-encoded frames kept in RAM so
// that, when a detection trigger fires, the seconds leading up to the
// event can still be written to disk.
package ringbuffer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmylchreest/tvarr-recorder/internal/writer"
)

// ErrClosed is returned by operations on a freed buffer.
var ErrClosed = errors.New("ring buffer closed")

// Frame is one pre-buffered encoded frame.
type Frame struct {
	Data     []byte
	PTS      time.Duration
	Keyframe bool
}

// Buffer is a bounded FIFO of Frames. Capacity is fixed at construction;
// Push overwrites the oldest entry once full. All operations are
// thread-safe: producers (the recorder) and a flusher (the detection
// subsystem) may race.
type Buffer struct {
	mu       sync.Mutex
	entries  []Frame
	head     int // index of the oldest entry
	count    int // number of valid entries
	capacity int
	closed   bool
}

// New creates a Buffer with the given capacity. Capacity must be >= 1;
// callers compute it with Capacity(preBufferSeconds, fps, maxFrames).
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		entries:  make([]Frame, capacity),
		capacity: capacity,
	}
}

// Capacity returns clamp(preBufferSeconds*fps, 1, maxFrames).
func Capacity(preBufferSeconds float64, fps int, maxFrames int) int {
	n := int(preBufferSeconds * float64(fps))
	if n < 1 {
		n = 1
	}
	if n > maxFrames {
		n = maxFrames
	}
	return n
}

// Push appends a frame, overwriting the oldest entry once the buffer
// is at capacity.
func (b *Buffer) Push(f Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	tail := (b.head + b.count) % b.capacity
	b.entries[tail] = f

	if b.count < b.capacity {
		b.count++
	} else {
		// Full: overwrite oldest, advance head.
		b.head = (b.head + 1) % b.capacity
	}
	return nil
}

// Len returns the number of frames currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// snapshot copies out the frames present right now, oldest first, and
// clears the buffer. Called with b.mu held.
func (b *Buffer) snapshot() []Frame {
	out := make([]Frame, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.head+i)%b.capacity]
	}
	b.head = 0
	b.count = 0
	return out
}

// FlushTo drains a consistent prefix of the buffer, exactly what is
// present at the moment it acquires the lock, into w's append path in
// arrival order, then empties the buffer. A concurrent Push that
// arrives after the lock is acquired is not included in this flush;
// FlushTo never waits for future pushes.
func (b *Buffer) FlushTo(ctx context.Context, w writer.Writer) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	frames := b.snapshot()
	b.mu.Unlock()

	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("flushing ring buffer: %w", err)
		}
		pkt := writer.Packet{Data: f.Data, PTS: f.PTS, Keyframe: f.Keyframe}
		if err := w.WritePacket(ctx, pkt); err != nil {
			return fmt.Errorf("flushing buffered frame to writer: %w", err)
		}
	}
	return nil
}

// Free releases the buffer. Subsequent Push/FlushTo calls return
// ErrClosed.
func (b *Buffer) Free() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.entries = nil
	b.count = 0
}
