package pipeline

import (
	"sync"
	"time"

	"github.com/tallycam/tallycam-go/internal/observability/metrics"
)

// Drop reasons reported by the throttle.
const (
	DropBusy     = "busy"
	DropInterval = "interval"
)

// Throttle is a single-flight gate over frame analysis. It admits at most
// one in-flight analysis and at most one admission per minimum interval;
// frames arriving too soon are dropped, never queued, so the pipeline
// always represents "now".
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	busy     bool
	metrics  *metrics.PipelineMetrics
}

// NewThrottle creates a throttle with the given minimum interval.
func NewThrottle(interval time.Duration, m *metrics.PipelineMetrics) *Throttle {
	return &Throttle{interval: interval, metrics: m}
}

// TryAcquire attempts to admit a frame at the given time. On success it
// returns a release function that must be called exactly once when the
// analysis settles, success or error. On refusal it returns the drop
// reason.
func (t *Throttle) TryAcquire(now time.Time) (release func(), reason string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.busy {
		t.metrics.IncrementFrameDropped(DropBusy)
		return nil, DropBusy, false
	}
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		t.metrics.IncrementFrameDropped(DropInterval)
		return nil, DropInterval, false
	}

	t.busy = true
	t.last = now

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			t.busy = false
			t.mu.Unlock()
		})
	}, "", true
}

// Reset clears the busy flag and the interval clock. Used when analysis is
// stopped so a restarted stream is admitted immediately.
func (t *Throttle) Reset() {
	t.mu.Lock()
	t.busy = false
	t.last = time.Time{}
	t.mu.Unlock()
}
