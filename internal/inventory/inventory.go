// Package inventory owns the canonical item list: a single JSON document
// plus a photo directory. The reconciler folds detections and session
// items into it without creating duplicates.
package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tallycam/tallycam-go/internal/conf"
	"github.com/tallycam/tallycam-go/internal/errors"
	"github.com/tallycam/tallycam-go/internal/observability/metrics"
)

// CategoryOther is the placeholder category a more specific incoming
// category may replace.
const CategoryOther = "Other"

// Item is one canonical inventory record.
type Item struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category,omitempty"`
	Room           string    `json:"room,omitempty"`
	Brand          string    `json:"brand,omitempty"`
	Color          string    `json:"color,omitempty"`
	Size           string    `json:"size,omitempty"`
	Photos         []string  `json:"photos,omitempty"`
	EstimatedValue float64   `json:"estimatedValue,omitempty"`
	PurchasePrice  float64   `json:"purchasePrice,omitempty"`
	Quantity       int       `json:"quantity"`
	Notes          string    `json:"notes,omitempty"`
	Source         string    `json:"source,omitempty"`
	FrameSiblings  []string  `json:"frameSiblings,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Incoming is one detection or session item offered to the reconciler.
type Incoming struct {
	Name           string
	Category       string
	Room           string
	Brand          string
	Color          string
	Size           string
	EstimatedValue float64
	Photo          []byte // JPEG thumbnail, may be nil
	Source         string
	FrameSiblings  []string
}

// inventoryFile is the persisted document shape.
type inventoryFile struct {
	Items []*Item `json:"items"`
}

// Store holds the inventory in memory and persists it as one JSON
// document. All exported methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	path     string
	photoDir string
	metrics  *metrics.StoreMetrics
	items    []*Item
}

// NewStore opens (or initializes) the inventory at the configured paths.
func NewStore(settings conf.InventorySettings, m *metrics.StoreMetrics) (*Store, error) {
	if settings.Path == "" {
		return nil, errors.Newf("inventory path not configured").
			Component("inventory").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.PhotoPath == "" {
		settings.PhotoPath = filepath.Join(filepath.Dir(settings.Path), "inventory_photos")
	}
	if err := os.MkdirAll(settings.PhotoPath, 0o755); err != nil {
		return nil, errors.New(err).
			Component("inventory").
			Category(errors.CategoryFileIO).
			Context("path", settings.PhotoPath).
			Build()
	}

	s := &Store{path: settings.Path, photoDir: settings.PhotoPath, metrics: m}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.New(err).
			Component("inventory").
			Category(errors.CategoryFileIO).
			Context("path", s.path).
			Build()
	}

	var doc inventoryFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.New(err).
			Component("inventory").
			Category(errors.CategoryParsing).
			Context("path", s.path).
			Build()
	}
	s.items = doc.Items
	return nil
}

// flush writes the document atomically. Callers hold s.mu.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(inventoryFile{Items: s.items}, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("inventory").
			Category(errors.CategoryGeneric).
			Build()
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.New(err).
			Component("inventory").
			Category(errors.CategoryFileIO).
			Context("path", tmp).
			Build()
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.New(err).
			Component("inventory").
			Category(errors.CategoryFileIO).
			Context("path", s.path).
			Build()
	}
	return nil
}

// Items returns a snapshot of the inventory.
func (s *Store) Items() []*Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the item count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Get returns the item with the given id.
func (s *Store) Get(id string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, nil
		}
	}
	return nil, errors.Newf("inventory item %s not found", id).
		Component("inventory").
		Category(errors.CategoryNotFound).
		Build()
}

// DeleteItem removes an item and its photo files. Photos are removed
// first; a photo that cannot be removed aborts the delete with the record
// intact.
func (s *Store) DeleteItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, it := range s.items {
		if it.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.Newf("inventory item %s not found", id).
			Component("inventory").
			Category(errors.CategoryNotFound).
			Build()
	}

	if err := s.deletePhotos(s.items[idx]); err != nil {
		return err
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return s.flush()
}

// deletePhotos removes an item's photo files. Callers hold s.mu.
func (s *Store) deletePhotos(it *Item) error {
	for _, name := range it.Photos {
		path := filepath.Join(s.photoDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.New(err).
				Component("inventory").
				Category(errors.CategoryFileIO).
				Context("item_id", it.ID).
				Context("photo", name).
				Build()
		}
		s.metrics.IncrementPhotosDeleted()
	}
	return nil
}

// writePhoto stores JPEG bytes for an item and returns the stored
// filename. Callers hold s.mu.
func (s *Store) writePhoto(itemID string, data []byte) (string, error) {
	name := fmt.Sprintf("%s-%s.jpg", itemID, uuid.NewString()[:8])
	if err := os.WriteFile(filepath.Join(s.photoDir, name), data, 0o644); err != nil {
		return "", errors.New(err).
			Component("inventory").
			Category(errors.CategoryFileIO).
			Context("item_id", itemID).
			Build()
	}
	s.metrics.IncrementPhotosWritten()
	return name, nil
}

// PhotoPath returns the on-disk path for a stored photo filename.
func (s *Store) PhotoPath(name string) string {
	return filepath.Join(s.photoDir, name)
}

// PhotoDir returns the photo directory path.
func (s *Store) PhotoDir() string {
	return s.photoDir
}
