package pipeline

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tallycam/tallycam-go/internal/detection"
	"github.com/tallycam/tallycam-go/internal/namematch"
	"github.com/tallycam/tallycam-go/internal/observability/metrics"
)

// Window is the live deduplication window over emitted detections. A
// detection whose case-normalized name was already emitted within the
// horizon is discarded; the existing entry is left untouched. The emitted
// list is capped, evicting oldest-first and releasing evicted frame
// handles.
//
// Window is not safe for concurrent use: the pipeline coordinator is its
// single mutator.
type Window struct {
	horizon time.Duration
	limit   int
	seen    *gocache.Cache // normalized name -> struct{}, TTL = horizon
	emitted []*detection.Detection
	metrics *metrics.PipelineMetrics
}

// NewWindow creates a dedup window with the given horizon and list cap.
func NewWindow(horizon time.Duration, limit int, m *metrics.PipelineMetrics) *Window {
	return &Window{
		horizon: horizon,
		limit:   limit,
		seen:    gocache.New(horizon, horizon),
		metrics: m,
	}
}

// Offer appends the detection to the emitted list unless a same-named
// detection was emitted within the horizon. Returns true when emitted.
func (w *Window) Offer(d *detection.Detection) bool {
	key := namematch.Normalize(d.Name)
	if key == "" {
		return false
	}
	if _, dup := w.seen.Get(key); dup {
		w.metrics.IncrementDetectionsDeduped()
		d.ReleaseFrame()
		return false
	}

	w.seen.Set(key, struct{}{}, w.horizon)
	w.emitted = append(w.emitted, d)
	w.metrics.IncrementDetectionsEmitted()

	// Cap the list, oldest first, releasing frames to bound memory
	for len(w.emitted) > w.limit {
		oldest := w.emitted[0]
		oldest.ReleaseFrame()
		w.emitted = w.emitted[1:]
		w.metrics.IncrementEmittedEvicted()
	}
	return true
}

// Patch attaches a bounding box to the most recent emitted detection whose
// name matches at substring tier or better. The box strictly adds or
// replaces geometry; names are never changed. Returns false when nothing
// matched.
func (w *Window) Patch(name string, box detection.BoundingBox) bool {
	names := make([]string, len(w.emitted))
	for i, d := range w.emitted {
		names[i] = d.Name
	}
	idx, tier := namematch.BestIndex(name, names, namematch.TierSubstring)
	if idx < 0 {
		w.metrics.IncrementBackfillUnmatched()
		logger.Warn("backfill box matched no emitted detection",
			"name", name,
			"emitted_count", len(w.emitted))
		return false
	}

	w.emitted[idx].Boxes = []detection.BoundingBox{box}
	w.metrics.IncrementBackfillMatched()
	logger.Debug("backfill box patched",
		"name", name,
		"matched", w.emitted[idx].Name,
		"tier", tier.String())
	return true
}

// BoxlessNames returns the names of emitted detections that still lack
// geometry, oldest first.
func (w *Window) BoxlessNames() []string {
	var names []string
	for _, d := range w.emitted {
		if !d.HasBox() {
			names = append(names, d.Name)
		}
	}
	return names
}

// Emitted returns the current emitted list. The caller must not mutate it
// concurrently with the coordinator.
func (w *Window) Emitted() []*detection.Detection {
	return w.emitted
}

// Len returns the emitted list length.
func (w *Window) Len() int {
	return len(w.emitted)
}
