// Package detection provides the domain models for object detection
// processing. These models are optimized for runtime use and are
// independent of the persisted session and inventory schemas.
package detection

import (
	"fmt"
	"time"

	"github.com/tallycam/tallycam-go/internal/frame"
)

// BoundingBox is a normalized rectangle within an associated image. All
// coordinates are in the 0-1 range relative to the image's logical
// (display-rotated) dimensions.
type BoundingBox struct {
	YMin float64 `json:"yMin"`
	XMin float64 `json:"xMin"`
	YMax float64 `json:"yMax"`
	XMax float64 `json:"xMax"`
}

// modelScale is the coordinate scale used by the vision model's box output.
const modelScale = 1000.0

// BoxFromModelScale converts a model-scale [yMin, xMin, yMax, xMax] quad
// into a normalized BoundingBox. Coordinates are clamped to [0, 1] and
// inverted extents are rejected.
func BoxFromModelScale(coords [4]float64) (BoundingBox, error) {
	b := BoundingBox{
		YMin: clamp01(coords[0] / modelScale),
		XMin: clamp01(coords[1] / modelScale),
		YMax: clamp01(coords[2] / modelScale),
		XMax: clamp01(coords[3] / modelScale),
	}
	if !b.Valid() {
		return BoundingBox{}, fmt.Errorf("inverted bounding box: %+v", b)
	}
	return b, nil
}

// Valid reports whether the box satisfies yMin <= yMax and xMin <= xMax
// with all coordinates in [0, 1].
func (b BoundingBox) Valid() bool {
	return b.YMin >= 0 && b.XMin >= 0 &&
		b.YMax <= 1 && b.XMax <= 1 &&
		b.YMin <= b.YMax && b.XMin <= b.XMax
}

// Width returns the normalized width of the box.
func (b BoundingBox) Width() float64 { return b.XMax - b.XMin }

// Height returns the normalized height of the box.
func (b BoundingBox) Height() float64 { return b.YMax - b.YMin }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Detection is one AI-identified object within a single analyzed frame.
// It lives in memory for the duration of a streaming session and is
// converted into a session or inventory record on save, after which its
// frame handle is released.
type Detection struct {
	ID           string        // unique id, assigned when emitted
	Name         string        // free-text object name
	Brand        string        // optional
	Color        string        // optional
	Size         string        // optional
	CategoryHint string        // optional category suggested upstream
	Boxes        []BoundingBox // zero or more boxes, usually one
	CreatedAt    time.Time

	// Frame is a borrowed handle on the source frame, released once the
	// detection has been persisted (or evicted).
	Frame *frame.Handle

	// Enriched is set once the background enrichment service has called
	// back with additional fields.
	Enriched bool
	// ClassName is the upstream classifier's class, when the detection
	// originated from one rather than the vision endpoint.
	ClassName string
}

// HasBox reports whether the detection carries at least one bounding box.
func (d *Detection) HasBox() bool {
	return len(d.Boxes) > 0
}

// PrimaryBox returns the first bounding box, or a zero box and false.
func (d *Detection) PrimaryBox() (BoundingBox, bool) {
	if len(d.Boxes) == 0 {
		return BoundingBox{}, false
	}
	return d.Boxes[0], true
}

// ReleaseFrame drops the detection's frame handle, if any.
func (d *Detection) ReleaseFrame() {
	if d.Frame != nil {
		d.Frame.Release()
		d.Frame = nil
	}
}
