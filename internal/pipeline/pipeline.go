// Package pipeline implements the frame analysis pipeline: a throttled,
// cancellation-aware analysis loop over a live frame source, a live
// deduplication window over emitted detections, and asynchronous
// bounding-box backfill.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tallycam/tallycam-go/internal/conf"
	"github.com/tallycam/tallycam-go/internal/detection"
	"github.com/tallycam/tallycam-go/internal/frame"
	"github.com/tallycam/tallycam-go/internal/observability/metrics"
	"github.com/tallycam/tallycam-go/internal/vision"
)

// Analyzer is the vision capability the pipeline depends on. Satisfied by
// *vision.Client; narrowed to an interface for testing.
type Analyzer interface {
	Detect(ctx context.Context, f *frame.Frame) ([]vision.Result, error)
	BackfillBoxes(ctx context.Context, f *frame.Frame, names []string) ([]vision.NamedBox, error)
}

// analysisOutcome carries one settled detection call back to the
// coordinator.
type analysisOutcome struct {
	handle  *frame.Handle
	results []vision.Result
	elapsed time.Duration
}

// patchBatch carries settled backfill geometry back to the coordinator.
type patchBatch struct {
	boxes []vision.NamedBox
}

// Pipeline coordinates frame intake, throttled analysis, live dedup and
// backfill. One coordinator goroutine exclusively owns the emitted list;
// analysis and backfill goroutines post their outcomes back through
// channels.
type Pipeline struct {
	settings conf.ScanSettings
	analyzer Analyzer
	throttle *Throttle
	window   *Window
	limiter  *rate.Limiter
	metrics  *metrics.PipelineMetrics

	// OnEmit, when set, is invoked from the coordinator goroutine for
	// every newly emitted detection.
	OnEmit func(*detection.Detection)

	outcomes chan analysisOutcome
	patches  chan patchBatch
	inflight int // analysis + backfill goroutines not yet settled
}

// New creates a pipeline from settings.
func New(settings conf.ScanSettings, analyzer Analyzer, m *metrics.PipelineMetrics) *Pipeline {
	return &Pipeline{
		settings: settings,
		analyzer: analyzer,
		throttle: NewThrottle(settings.Interval, m),
		window:   NewWindow(settings.DedupWindow, settings.MaxEmitted, m),
		// Backfill calls are background work; keep them well below the
		// detection cadence.
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 1),
		metrics:  m,
		outcomes: make(chan analysisOutcome, 4),
		patches:  make(chan patchBatch, 4),
	}
}

// Run consumes frames from the mailbox until it closes or ctx is
// cancelled, then waits for in-flight calls to settle. A detection that
// completes after cancellation is still recorded, since a completed
// detection is still useful to display.
func (p *Pipeline) Run(ctx context.Context, mbox *frame.Mailbox) error {
	logger.Info("pipeline started",
		"interval", p.settings.Interval.String(),
		"dedup_window", p.settings.DedupWindow.String(),
		"max_emitted", p.settings.MaxEmitted,
		"backfill", p.settings.Backfill)

	// Frame intake runs in its own goroutine so the coordinator can fold
	// in outcomes and patches while no frame is pending. The mailbox keeps
	// latest-wins semantics; a frame held here goes stale by at most one
	// publish.
	frames := make(chan *frame.Frame)
	go func() {
		defer close(frames)
		for {
			f, ok := mbox.Receive(ctx)
			if !ok {
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	for frames != nil || p.inflight > 0 {
		select {
		case f, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			p.offerFrame(ctx, f)
		case out := <-p.outcomes:
			p.handleOutcome(ctx, out)
		case batch := <-p.patches:
			p.handlePatches(batch)
		}
	}

	p.throttle.Reset()
	logger.Info("pipeline stopped",
		"emitted", p.window.Len(),
		"mailbox_drops", mbox.Drops())
	return nil
}

// offerFrame runs one frame through the throttle and, when admitted,
// dispatches the detection call.
func (p *Pipeline) offerFrame(ctx context.Context, f *frame.Frame) {
	p.metrics.IncrementFramesOffered()

	release, reason, ok := p.throttle.TryAcquire(time.Now())
	if !ok {
		logger.Debug("frame dropped", "reason", reason, "seq", f.Seq)
		return
	}

	p.metrics.IncrementFramesAnalyzed()
	handle := frame.NewHandle(f)
	p.inflight++

	go func() {
		start := time.Now()
		// The call is bounded by the client's own timeout; context
		// cancellation stops new frames but lets this call finish.
		results, err := p.analyzer.Detect(context.WithoutCancel(ctx), f)
		release()
		if err != nil {
			logger.Warn("frame analysis failed", "seq", f.Seq, "error", err)
		}
		p.outcomes <- analysisOutcome{handle: handle, results: results, elapsed: time.Since(start)}
	}()
}

// handleOutcome folds one settled detection call into the emitted list and
// schedules backfill when geometry is missing.
func (p *Pipeline) handleOutcome(ctx context.Context, out analysisOutcome) {
	p.inflight--

	emitted := 0
	for i := range out.results {
		r := &out.results[i]
		d := &detection.Detection{
			ID:           uuid.NewString(),
			Name:         r.Name,
			Brand:        r.Brand,
			Color:        r.Color,
			Size:         r.Size,
			CategoryHint: r.Category,
			CreatedAt:    time.Now(),
			Frame:        out.handle.Retain(),
		}
		if r.Box != nil {
			d.Boxes = []detection.BoundingBox{*r.Box}
		}
		if p.window.Offer(d) {
			emitted++
			if p.OnEmit != nil {
				p.OnEmit(d)
			}
		}
	}

	if p.settings.ProcessingLog {
		logger.Info("frame analyzed",
			"results", len(out.results),
			"emitted", emitted,
			"elapsed_ms", out.elapsed.Milliseconds())
	}

	p.maybeBackfill(ctx, out.handle)
	out.handle.Release()
}

// maybeBackfill schedules one geometry-only call for emitted detections
// that still lack boxes, rate-limited independently of the throttle.
func (p *Pipeline) maybeBackfill(ctx context.Context, handle *frame.Handle) {
	if !p.settings.Backfill || ctx.Err() != nil {
		return
	}
	names := p.window.BoxlessNames()
	if len(names) == 0 || !p.limiter.Allow() {
		return
	}

	f := handle.Frame()
	if f == nil {
		return
	}
	backfillHandle := handle.Retain()
	p.inflight++

	go func() {
		defer backfillHandle.Release()
		boxes, err := p.analyzer.BackfillBoxes(context.WithoutCancel(ctx), f, names)
		if err != nil {
			logger.Warn("bounding-box backfill failed", "names", len(names), "error", err)
		}
		p.patches <- patchBatch{boxes: boxes}
	}()
}

// handlePatches applies backfill geometry to the emitted list, grouping
// boxes by name so each name patches its most recent match.
func (p *Pipeline) handlePatches(batch patchBatch) {
	p.inflight--
	for _, nb := range batch.boxes {
		p.window.Patch(nb.Name, nb.Box)
	}
}

// Emitted returns the detections visible after Run has returned. Callers
// take ownership of the list and the frame handles it still holds.
func (p *Pipeline) Emitted() []*detection.Detection {
	return p.window.Emitted()
}
