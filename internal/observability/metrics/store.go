package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics contains all Prometheus metrics related to the session and
// inventory stores.
type StoreMetrics struct {
	SessionItems    prometheus.Counter
	SessionsMerged  prometheus.Counter
	ItemsCreated    prometheus.Counter
	ItemsMerged     prometheus.Counter
	PhotosWritten   prometheus.Counter
	PhotosDeleted   prometheus.Counter
	ThumbnailErrors prometheus.Counter
	registry        *prometheus.Registry
}

// NewStoreMetrics creates a new instance of StoreMetrics and registers it
// with the given registry.
func NewStoreMetrics(registry *prometheus.Registry) (*StoreMetrics, error) {
	m := &StoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize Store metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register Store metrics: %w", err)
	}
	return m, nil
}

func (m *StoreMetrics) initMetrics() error {
	m.SessionItems = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_session_items_total",
		Help: "Total number of items appended to scanning sessions.",
	})

	m.SessionsMerged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_sessions_merged_total",
		Help: "Total number of sessions merged into the inventory.",
	})

	m.ItemsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_inventory_items_created_total",
		Help: "Total number of new inventory records created.",
	})

	m.ItemsMerged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_inventory_items_merged_total",
		Help: "Total number of detections merged into existing records.",
	})

	m.PhotosWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_photos_written_total",
		Help: "Total number of photo files written.",
	})

	m.PhotosDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_photos_deleted_total",
		Help: "Total number of photo files deleted.",
	})

	m.ThumbnailErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_thumbnail_errors_total",
		Help: "Total number of thumbnail materializations that degraded to no photo.",
	})

	return nil
}

// Describe implements prometheus.Collector.
func (m *StoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.SessionItems.Describe(ch)
	m.SessionsMerged.Describe(ch)
	m.ItemsCreated.Describe(ch)
	m.ItemsMerged.Describe(ch)
	m.PhotosWritten.Describe(ch)
	m.PhotosDeleted.Describe(ch)
	m.ThumbnailErrors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *StoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.SessionItems.Collect(ch)
	m.SessionsMerged.Collect(ch)
	m.ItemsCreated.Collect(ch)
	m.ItemsMerged.Collect(ch)
	m.PhotosWritten.Collect(ch)
	m.PhotosDeleted.Collect(ch)
	m.ThumbnailErrors.Collect(ch)
}

// IncrementSessionItems counts an item appended to a session.
func (m *StoreMetrics) IncrementSessionItems() {
	if m == nil {
		return
	}
	m.SessionItems.Inc()
}

// IncrementSessionsMerged counts a session folded into the inventory.
func (m *StoreMetrics) IncrementSessionsMerged() {
	if m == nil {
		return
	}
	m.SessionsMerged.Inc()
}

// IncrementItemsCreated counts a newly created inventory record.
func (m *StoreMetrics) IncrementItemsCreated() {
	if m == nil {
		return
	}
	m.ItemsCreated.Inc()
}

// IncrementItemsMerged counts a detection merged into an existing record.
func (m *StoreMetrics) IncrementItemsMerged() {
	if m == nil {
		return
	}
	m.ItemsMerged.Inc()
}

// IncrementPhotosWritten counts a photo file written to disk.
func (m *StoreMetrics) IncrementPhotosWritten() {
	if m == nil {
		return
	}
	m.PhotosWritten.Inc()
}

// IncrementPhotosDeleted counts a photo file removed from disk.
func (m *StoreMetrics) IncrementPhotosDeleted() {
	if m == nil {
		return
	}
	m.PhotosDeleted.Inc()
}

// IncrementThumbnailErrors counts a save that degraded to no photo.
func (m *StoreMetrics) IncrementThumbnailErrors() {
	if m == nil {
		return
	}
	m.ThumbnailErrors.Inc()
}
