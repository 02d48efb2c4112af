// Package observability provides metrics and monitoring capabilities for
// the tallycam application.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tallycam/tallycam-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Vision   *metrics.VisionMetrics
	Pipeline *metrics.PipelineMetrics
	Store    *metrics.StoreMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors. It returns an error if any collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	visionMetrics, err := metrics.NewVisionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vision metrics: %w", err)
	}

	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pipeline metrics: %w", err)
	}

	storeMetrics, err := metrics.NewStoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Store metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Vision:   visionMetrics,
		Pipeline: pipelineMetrics,
		Store:    storeMetrics,
	}, nil
}

// Registry exposes the underlying registry for endpoint wiring.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Serve starts a Prometheus scrape endpoint on the given address. It blocks
// until the server fails, so callers normally run it in a goroutine.
func (m *Metrics) Serve(listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
