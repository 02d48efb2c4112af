// Package frame defines the camera frame model and the latest-frame-wins
// handoff between the frame source and the analysis pipeline.
package frame

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Orientation describes the rotation needed to map a frame's logical
// (display) coordinate space onto its raw pixel space.
type Orientation int

const (
	// OrientationUp means raw pixels already match the display space.
	OrientationUp Orientation = iota
	// OrientationRight means the raw frame must be rotated 90 degrees
	// clockwise to match the display space.
	OrientationRight
	// OrientationLeft means the raw frame must be rotated 90 degrees
	// counter-clockwise to match the display space.
	OrientationLeft
	// OrientationDown means the raw frame is upside down.
	OrientationDown
)

// Frame is one captured camera frame.
//
// Data holds JPEG-encoded pixels and must not be modified after the frame
// has been offered to a Mailbox; it is shared by reference along the whole
// pipeline (zero-copy contract).
type Frame struct {
	Data        []byte      // JPEG-encoded frame bytes, read-only once published
	Width       int         // raw pixel width
	Height      int         // raw pixel height
	Orientation Orientation // capture orientation relative to display space
	Timestamp   time.Time   // capture time (source clock)
	Seq         uint64      // monotonically increasing sequence number
}

// Handle is a reference-counted grip on a Frame. Detections hold a Handle
// until their thumbnail has been materialized, after which the handle is
// released and the pixels become collectable.
type Handle struct {
	frame *Frame
	refs  *int64
}

// NewHandle wraps a frame with an initial reference count of one.
func NewHandle(f *Frame) *Handle {
	refs := int64(1)
	return &Handle{frame: f, refs: &refs}
}

// Retain adds a reference sharing the same underlying frame.
func (h *Handle) Retain() *Handle {
	if h == nil {
		return nil
	}
	atomic.AddInt64(h.refs, 1)
	return &Handle{frame: h.frame, refs: h.refs}
}

// Release drops this reference. After the last release Frame() returns nil.
// Releasing twice is a no-op on the second call.
func (h *Handle) Release() {
	if h == nil || h.frame == nil {
		return
	}
	h.frame = nil
	atomic.AddInt64(h.refs, -1)
}

// Frame returns the referenced frame, or nil if this handle was released.
func (h *Handle) Frame() *Frame {
	if h == nil {
		return nil
	}
	return h.frame
}

// Source delivers frames at camera rate. Implementations push into a
// Mailbox; the pipeline consumes at its own pace and stale frames are
// overwritten, never queued.
type Source interface {
	// Run pushes frames into mbox until ctx is cancelled or the source is
	// exhausted. Returns nil on normal exhaustion.
	Run(ctx context.Context, mbox *Mailbox) error
}

// Mailbox is a single-slot, latest-frame-wins handoff. Publishing never
// blocks; an unconsumed frame is overwritten and counted as dropped.
type Mailbox struct {
	mu     sync.Mutex
	slot   *Frame
	seq    uint64
	drops  uint64
	closed bool
	ready  chan struct{} // 1-buffered wakeup signal
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Publish places a frame in the slot, overwriting any unconsumed frame.
// The frame's Seq is assigned here. Safe for concurrent publishers.
func (m *Mailbox) Publish(f *Frame) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.slot != nil {
		m.drops++
	}
	m.seq++
	f.Seq = m.seq
	m.slot = f
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Receive blocks until a frame is available, the mailbox is closed, or ctx
// is cancelled. Returns ok=false when no further frames will arrive.
func (m *Mailbox) Receive(ctx context.Context) (f *Frame, ok bool) {
	for {
		m.mu.Lock()
		if m.slot != nil {
			f = m.slot
			m.slot = nil
			m.mu.Unlock()
			return f, true
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-m.ready:
		}
	}
}

// Close marks the mailbox as closed and wakes any blocked receiver. A frame
// already in the slot is still delivered.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Drops returns the number of frames overwritten before consumption.
func (m *Mailbox) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
