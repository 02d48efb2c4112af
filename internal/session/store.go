// Package session persists scanning sessions: a durable append log of one
// scanning pass's items, sharing one stored source photo per analyzed
// frame. Sessions move Idle -> Active -> Closed -> Merged; Merged is
// terminal.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tallycam/tallycam-go/internal/conf"
	"github.com/tallycam/tallycam-go/internal/detection"
	"github.com/tallycam/tallycam-go/internal/errors"
	"github.com/tallycam/tallycam-go/internal/frame"
	"github.com/tallycam/tallycam-go/internal/inventory"
	"github.com/tallycam/tallycam-go/internal/observability/metrics"
	"github.com/tallycam/tallycam-go/internal/thumbnail"
)

// defaultFlushEvery bounds I/O while scanning: the document is rewritten
// after this many appended items, or on any lifecycle change.
const defaultFlushEvery = 5

// Item is the durable projection of one detection.
type Item struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Brand          string                 `json:"brand,omitempty"`
	Color          string                 `json:"color,omitempty"`
	Size           string                 `json:"size,omitempty"`
	CategoryHint   string                 `json:"categoryHint,omitempty"`
	PhotoFilename  string                 `json:"photoFilename,omitempty"`
	Box            *detection.BoundingBox `json:"box,omitempty"`
	HasBoundingBox bool                   `json:"hasBoundingBox"`
	DetectedAt     time.Time              `json:"detectedAt"`
	FrameSiblings  []string               `json:"frameSiblings,omitempty"`
}

// Session is one named, timestamped scanning pass.
type Session struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	IsMerged  bool       `json:"isMerged"`
	Items     []Item     `json:"items"`
}

// Active reports whether the session is still accepting items.
func (s *Session) Active() bool { return s.EndedAt == nil }

// sessionsFile is the persisted document shape.
type sessionsFile struct {
	Sessions []*Session `json:"sessions"`
}

// Reconciler is the inventory capability session merge depends on.
// Satisfied by *inventory.Store.
type Reconciler interface {
	AddItems(batch []inventory.Incoming) (created, merged int, err error)
}

// Store owns the sessions document and its shared photo directory. All
// exported methods are safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	path       string
	photoDir   string
	flushEvery int
	thumbs     *thumbnail.Materializer
	metrics    *metrics.StoreMetrics

	sessions []*Session
	activeID string
	pending  int

	// framePhotos maps a live frame to its stored photo filename so each
	// distinct frame is written exactly once per session.
	framePhotos map[*frame.Frame]string
}

// NewStore opens (or initializes) the session log at the configured paths.
func NewStore(settings conf.SessionSettings, thumbs *thumbnail.Materializer, m *metrics.StoreMetrics) (*Store, error) {
	if settings.Path == "" {
		return nil, errors.Newf("session path not configured").
			Component("session").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.PhotoPath == "" {
		settings.PhotoPath = filepath.Join(filepath.Dir(settings.Path), "session_photos")
	}
	if settings.FlushEvery <= 0 {
		settings.FlushEvery = defaultFlushEvery
	}
	if err := os.MkdirAll(settings.PhotoPath, 0o755); err != nil {
		return nil, errors.New(err).
			Component("session").
			Category(errors.CategoryFileIO).
			Context("path", settings.PhotoPath).
			Build()
	}

	s := &Store{
		path:        settings.Path,
		photoDir:    settings.PhotoPath,
		flushEvery:  settings.FlushEvery,
		thumbs:      thumbs,
		metrics:     m,
		framePhotos: make(map[*frame.Frame]string),
	}
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
			Component("session").
			Category(errors.CategoryFileIO).
			Context("path", s.path).
			Build()
	}

	var doc sessionsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.New(err).
			Component("session").
			Category(errors.CategoryParsing).
			Context("path", s.path).
			Build()
	}
	s.sessions = doc.Sessions
	return nil
}

// flush writes the document atomically and resets the pending counter.
// Callers hold s.mu.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(sessionsFile{Sessions: s.sessions}, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("session").
			Category(errors.CategoryGeneric).
			Build()
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.New(err).
			Component("session").
			Category(errors.CategoryFileIO).
			Context("path", tmp).
			Build()
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.New(err).
			Component("session").
			Category(errors.CategoryFileIO).
			Context("path", s.path).
			Build()
	}
	s.pending = 0
	return nil
}

// CreateSession starts a new session and marks it active. Only one
// session may be active at a time.
func (s *Store) CreateSession(name string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID != "" {
		return nil, errors.Newf("session %s is still active", s.activeID).
			Component("session").
			Category(errors.CategoryState).
			Build()
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Name:      name,
		StartedAt: time.Now(),
	}
	s.sessions = append(s.sessions, sess)
	s.activeID = sess.ID
	s.framePhotos = make(map[*frame.Frame]string)

	if err := s.flush(); err != nil {
		return nil, err
	}
	logger.Info("session started", "session_id", sess.ID, "name", sess.Name)
	return sess, nil
}

// Active returns the active session, or nil.
func (s *Store) Active() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == "" {
		return nil
	}
	sess, _ := s.findLocked(s.activeID)
	return sess
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.findLocked(id)
	if !ok {
		return nil, errors.Newf("session %s not found", id).
			Component("session").
			Category(errors.CategoryNotFound).
			Build()
	}
	return sess, nil
}

// List returns a snapshot of all sessions, oldest first.
func (s *Store) List() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

func (s *Store) findLocked(id string) (*Session, bool) {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return nil, false
}

// AddDetection appends one detection to the active session. Its source
// frame is written once per session and shared by items from the same
// frame; the detection's frame handle is released afterwards.
func (s *Store) AddDetection(d *detection.Detection) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, err := s.appendLocked(d)
	if err != nil {
		return nil, err
	}
	if err := s.maybeFlushLocked(); err != nil {
		return nil, err
	}
	return item, nil
}

// AddPhotoResults appends all detections from one analyzed frame. The
// shared source frame is stored once; every item references it by
// filename and keeps only its own normalized coordinates.
func (s *Store) AddPhotoResults(ds []*detection.Detection) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, 0, len(ds))
	for _, d := range ds {
		item, err := s.appendLocked(d)
		if err != nil {
			return items, err
		}
		items = append(items, *item)
	}
	if err := s.maybeFlushLocked(); err != nil {
		return items, err
	}
	return items, nil
}

func (s *Store) appendLocked(d *detection.Detection) (*Item, error) {
	if s.activeID == "" {
		return nil, errors.Newf("no active session").
			Component("session").
			Category(errors.CategoryState).
			Build()
	}
	sess, _ := s.findLocked(s.activeID)

	item := Item{
		ID:           uuid.NewString(),
		Name:         d.Name,
		Brand:        d.Brand,
		Color:        d.Color,
		Size:         d.Size,
		CategoryHint: d.CategoryHint,
		DetectedAt:   d.CreatedAt,
	}
	if box, ok := d.PrimaryBox(); ok {
		item.Box = &box
		item.HasBoundingBox = true
	}

	photo, err := s.framePhotoLocked(d)
	if err != nil {
		// A missing photo degrades the item, it never fails the save.
		logger.Warn("no photo stored for detection",
			"name", d.Name,
			"class_name", d.ClassName,
			"enriched", d.Enriched,
			"error", err)
		s.metrics.IncrementThumbnailErrors()
	}
	item.PhotoFilename = photo
	d.ReleaseFrame()

	sess.Items = append(sess.Items, item)
	s.pending++
	s.metrics.IncrementSessionItems()
	return &sess.Items[len(sess.Items)-1], nil
}

// framePhotoLocked returns the stored photo filename for the detection's
// source frame, writing the frame on first reference.
func (s *Store) framePhotoLocked(d *detection.Detection) (string, error) {
	f := d.Frame.Frame()
	if f == nil {
		return "", errors.Newf("detection has no source frame").
			Component("session").
			Category(errors.CategoryResource).
			Build()
	}
	if name, ok := s.framePhotos[f]; ok {
		return name, nil
	}

	data, err := s.thumbs.Materialize(d.Frame, nil)
	if err != nil {
		return "", err
	}
	name := uuid.NewString() + ".jpg"
	if err := os.WriteFile(filepath.Join(s.photoDir, name), data, 0o644); err != nil {
		return "", errors.New(err).
			Component("session").
			Category(errors.CategoryFileIO).
			Context("photo", name).
			Build()
	}
	s.framePhotos[f] = name
	s.metrics.IncrementPhotosWritten()
	return name, nil
}

func (s *Store) maybeFlushLocked() error {
	if s.pending >= s.flushEvery {
		return s.flush()
	}
	return nil
}

// EndSession stamps the active session's end time and clears the active
// pointer. Ending when nothing is active is a state error.
func (s *Store) EndSession() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID == "" {
		return nil, errors.Newf("no active session to end").
			Component("session").
			Category(errors.CategoryState).
			Build()
	}
	sess, _ := s.findLocked(s.activeID)
	now := time.Now()
	sess.EndedAt = &now
	s.activeID = ""
	s.framePhotos = make(map[*frame.Frame]string)

	if err := s.flush(); err != nil {
		return nil, err
	}
	logger.Info("session ended",
		"session_id", sess.ID,
		"items", len(sess.Items))
	return sess, nil
}

// MergeSession folds a closed session's items into the inventory. The
// operation is idempotent: a session already merged is a no-op. Items
// cropped from the same shared frame are recorded on each other as frame
// siblings so co-detected objects stay discoverable.
func (s *Store) MergeSession(id string, inv Reconciler) (created, merged int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.findLocked(id)
	if !ok {
		return 0, 0, errors.Newf("session %s not found", id).
			Component("session").
			Category(errors.CategoryNotFound).
			Build()
	}
	if sess.Active() {
		return 0, 0, errors.Newf("session %s is still active", id).
			Component("session").
			Category(errors.CategoryState).
			Build()
	}
	if sess.IsMerged {
		logger.Info("session already merged", "session_id", id)
		return 0, 0, nil
	}

	siblings := frameSiblings(sess.Items)
	batch := make([]inventory.Incoming, 0, len(sess.Items))
	for i := range sess.Items {
		item := &sess.Items[i]
		item.FrameSiblings = siblings[item.ID]
		batch = append(batch, inventory.Incoming{
			Name:          item.Name,
			Category:      item.CategoryHint,
			Brand:         item.Brand,
			Color:         item.Color,
			Size:          item.Size,
			Photo:         s.itemThumbnail(item),
			Source:        "session:" + sess.ID,
			FrameSiblings: item.FrameSiblings,
		})
	}

	created, merged, err = inv.AddItems(batch)
	if err != nil {
		return created, merged, err
	}

	sess.IsMerged = true
	if err := s.flush(); err != nil {
		return created, merged, err
	}
	s.metrics.IncrementSessionsMerged()
	logger.Info("session merged",
		"session_id", sess.ID,
		"items", len(sess.Items),
		"created", created,
		"merged", merged)
	return created, merged, nil
}

// itemThumbnail produces the inventory thumbnail for a session item by
// cropping its shared photo to the item's box. Failures degrade to no
// photo.
func (s *Store) itemThumbnail(item *Item) []byte {
	if item.PhotoFilename == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(s.photoDir, item.PhotoFilename))
	if err != nil {
		logger.Warn("session photo unreadable",
			"photo", item.PhotoFilename,
			"error", err)
		s.metrics.IncrementThumbnailErrors()
		return nil
	}
	thumb, err := s.thumbs.MaterializeEncoded(data, item.Box)
	if err != nil {
		logger.Warn("thumbnail crop failed",
			"photo", item.PhotoFilename,
			"name", item.Name,
			"error", err)
		s.metrics.IncrementThumbnailErrors()
		return nil
	}
	return thumb
}

// frameSiblings maps each item id to the names of other items cropped
// from the same shared frame.
func frameSiblings(items []Item) map[string][]string {
	byPhoto := make(map[string][]*Item)
	for i := range items {
		if items[i].PhotoFilename == "" {
			continue
		}
		byPhoto[items[i].PhotoFilename] = append(byPhoto[items[i].PhotoFilename], &items[i])
	}

	out := make(map[string][]string)
	for _, group := range byPhoto {
		if len(group) < 2 {
			continue
		}
		for _, item := range group {
			for _, other := range group {
				if other.ID != item.ID {
					out[item.ID] = append(out[item.ID], other.Name)
				}
			}
		}
	}
	return out
}

// DeleteSession removes the session record and any photo files no longer
// referenced by another session. Deleting the active session ends it
// implicitly.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, sess := range s.sessions {
		if sess.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.Newf("session %s not found", id).
			Component("session").
			Category(errors.CategoryNotFound).
			Build()
	}

	doomed := s.sessions[idx]
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	if s.activeID == id {
		s.activeID = ""
		s.framePhotos = make(map[*frame.Frame]string)
	}

	// Remove photos not shared with a surviving session.
	stillUsed := make(map[string]bool)
	for _, sess := range s.sessions {
		for _, item := range sess.Items {
			if item.PhotoFilename != "" {
				stillUsed[item.PhotoFilename] = true
			}
		}
	}
	removed := make(map[string]bool)
	for _, item := range doomed.Items {
		name := item.PhotoFilename
		if name == "" || stillUsed[name] || removed[name] {
			continue
		}
		if err := os.Remove(filepath.Join(s.photoDir, name)); err != nil && !os.IsNotExist(err) {
			logger.Warn("session photo not removed", "photo", name, "error", err)
			continue
		}
		removed[name] = true
		s.metrics.IncrementPhotosDeleted()
	}

	if err := s.flush(); err != nil {
		return err
	}
	logger.Info("session deleted", "session_id", id, "photos_removed", len(removed))
	return nil
}

// Flush forces the document to disk regardless of the pending counter.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

// PhotoPath returns the on-disk path for a stored photo filename.
func (s *Store) PhotoPath(name string) string {
	return filepath.Join(s.photoDir, name)
}
