package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains all Prometheus metrics related to the frame
// analysis pipeline: throttle, dedup window and backfill.
type PipelineMetrics struct {
	FramesOffered     prometheus.Counter
	FramesDropped     *prometheus.CounterVec
	FramesAnalyzed    prometheus.Counter
	DetectionsEmitted prometheus.Counter
	DetectionsDeduped prometheus.Counter
	EmittedEvicted    prometheus.Counter
	BackfillMatched   prometheus.Counter
	BackfillUnmatched prometheus.Counter
	registry          *prometheus.Registry
}

// NewPipelineMetrics creates a new instance of PipelineMetrics and registers
// it with the given registry.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize Pipeline metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register Pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() error {
	m.FramesOffered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_frames_offered_total",
		Help: "Total number of frames offered to the analysis throttle.",
	})

	m.FramesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_frames_dropped_total",
		Help: "Total number of frames dropped by the throttle, by reason (busy, interval).",
	}, []string{"reason"})

	m.FramesAnalyzed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_frames_analyzed_total",
		Help: "Total number of frames dispatched to the vision endpoint.",
	})

	m.DetectionsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_detections_emitted_total",
		Help: "Total number of detections that passed validation and dedup.",
	})

	m.DetectionsDeduped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_detections_deduped_total",
		Help: "Total number of detections suppressed by the live dedup window.",
	})

	m.EmittedEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_emitted_evicted_total",
		Help: "Total number of emitted detections evicted by the list cap.",
	})

	m.BackfillMatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vision_backfill_matched_total",
		Help: "Total number of backfill boxes patched onto emitted detections.",
	})

	m.BackfillUnmatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vision_backfill_unmatched_total",
		Help: "Total number of backfill boxes that matched no emitted detection.",
	})

	return nil
}

// Describe implements prometheus.Collector.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.FramesOffered.Describe(ch)
	m.FramesDropped.Describe(ch)
	m.FramesAnalyzed.Describe(ch)
	m.DetectionsEmitted.Describe(ch)
	m.DetectionsDeduped.Describe(ch)
	m.EmittedEvicted.Describe(ch)
	m.BackfillMatched.Describe(ch)
	m.BackfillUnmatched.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.FramesOffered.Collect(ch)
	m.FramesDropped.Collect(ch)
	m.FramesAnalyzed.Collect(ch)
	m.DetectionsEmitted.Collect(ch)
	m.DetectionsDeduped.Collect(ch)
	m.EmittedEvicted.Collect(ch)
	m.BackfillMatched.Collect(ch)
	m.BackfillUnmatched.Collect(ch)
}

// IncrementFramesOffered counts a frame offered to the throttle.
func (m *PipelineMetrics) IncrementFramesOffered() {
	if m == nil {
		return
	}
	m.FramesOffered.Inc()
}

// IncrementFrameDropped counts a throttled frame by drop reason.
func (m *PipelineMetrics) IncrementFrameDropped(reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// IncrementFramesAnalyzed counts a frame dispatched for analysis.
func (m *PipelineMetrics) IncrementFramesAnalyzed() {
	if m == nil {
		return
	}
	m.FramesAnalyzed.Inc()
}

// IncrementDetectionsEmitted counts a detection added to the emitted list.
func (m *PipelineMetrics) IncrementDetectionsEmitted() {
	if m == nil {
		return
	}
	m.DetectionsEmitted.Inc()
}

// IncrementDetectionsDeduped counts a detection suppressed by the window.
func (m *PipelineMetrics) IncrementDetectionsDeduped() {
	if m == nil {
		return
	}
	m.DetectionsDeduped.Inc()
}

// IncrementEmittedEvicted counts a detection evicted by the list cap.
func (m *PipelineMetrics) IncrementEmittedEvicted() {
	if m == nil {
		return
	}
	m.EmittedEvicted.Inc()
}

// IncrementBackfillMatched counts a box patched onto a detection.
func (m *PipelineMetrics) IncrementBackfillMatched() {
	if m == nil {
		return
	}
	m.BackfillMatched.Inc()
}

// IncrementBackfillUnmatched counts a box with no matching detection.
func (m *PipelineMetrics) IncrementBackfillUnmatched() {
	if m == nil {
		return
	}
	m.BackfillUnmatched.Inc()
}
