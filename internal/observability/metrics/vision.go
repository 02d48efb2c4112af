// Package metrics provides custom Prometheus metrics for the tallycam
// pipeline components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// VisionMetrics contains all Prometheus metrics related to the vision
// endpoint client and codec.
type VisionMetrics struct {
	APICalls        *prometheus.CounterVec
	APIErrors       *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	ParseFallbacks  prometheus.Counter
	Refusals        prometheus.Counter
	NamesRejected   prometheus.Counter
	registry        *prometheus.Registry
}

// NewVisionMetrics creates a new instance of VisionMetrics and registers it
// with the given registry.
func NewVisionMetrics(registry *prometheus.Registry) (*VisionMetrics, error) {
	m := &VisionMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize Vision metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register Vision metrics: %w", err)
	}
	return m, nil
}

func (m *VisionMetrics) initMetrics() error {
	m.APICalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_api_calls_total",
		Help: "Total number of vision API calls by kind (detect, backfill).",
	}, []string{"kind"})

	m.APIErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_api_errors_total",
		Help: "Total number of vision API failures by error category.",
	}, []string{"kind", "category"})

	m.RequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vision_request_duration_seconds",
		Help:    "Duration of vision API requests in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	m.ParseFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vision_parse_fallbacks_total",
		Help: "Total number of responses parsed via the plain-text fallback.",
	})

	m.Refusals = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vision_refusals_total",
		Help: "Total number of responses discarded as model refusals.",
	})

	m.NamesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vision_names_rejected_total",
		Help: "Total number of detection names dropped by the validity filter.",
	})

	return nil
}

// Describe implements prometheus.Collector.
func (m *VisionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.APICalls.Describe(ch)
	m.APIErrors.Describe(ch)
	m.RequestDuration.Describe(ch)
	m.ParseFallbacks.Describe(ch)
	m.Refusals.Describe(ch)
	m.NamesRejected.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *VisionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.APICalls.Collect(ch)
	m.APIErrors.Collect(ch)
	m.RequestDuration.Collect(ch)
	m.ParseFallbacks.Collect(ch)
	m.Refusals.Collect(ch)
	m.NamesRejected.Collect(ch)
}

// IncrementAPICall increments the call counter for the given request kind.
func (m *VisionMetrics) IncrementAPICall(kind string) {
	if m == nil {
		return
	}
	m.APICalls.WithLabelValues(kind).Inc()
}

// IncrementAPIError increments the failure counter for a request kind and
// error category.
func (m *VisionMetrics) IncrementAPIError(kind, category string) {
	if m == nil {
		return
	}
	m.APIErrors.WithLabelValues(kind, category).Inc()
}

// ObserveRequestDuration records the duration of a vision API request.
func (m *VisionMetrics) ObserveRequestDuration(seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(seconds)
}

// IncrementParseFallback counts a response that needed the plain-text parser.
func (m *VisionMetrics) IncrementParseFallback() {
	if m == nil {
		return
	}
	m.ParseFallbacks.Inc()
}

// IncrementRefusal counts a response discarded by refusal detection.
func (m *VisionMetrics) IncrementRefusal() {
	if m == nil {
		return
	}
	m.Refusals.Inc()
}

// IncrementNameRejected counts a detection name dropped by validation.
func (m *VisionMetrics) IncrementNameRejected() {
	if m == nil {
		return
	}
	m.NamesRejected.Inc()
}
