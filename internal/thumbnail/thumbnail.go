// Package thumbnail materializes persistable image crops from source
// frames and normalized bounding boxes. It accounts for capture
// orientation, pads and clamps crops, and never fails a save: a missing
// frame degrades to "no thumbnail".
package thumbnail

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/tallycam/tallycam-go/internal/conf"
	"github.com/tallycam/tallycam-go/internal/detection"
	"github.com/tallycam/tallycam-go/internal/errors"
	"github.com/tallycam/tallycam-go/internal/frame"
)

// Materializer produces JPEG thumbnails according to its settings.
type Materializer struct {
	settings conf.ThumbnailSettings
}

// New creates a Materializer, filling unset settings with defaults.
func New(settings conf.ThumbnailSettings) *Materializer {
	if settings.MaxWidth == 0 {
		settings.MaxWidth = 480
	}
	if settings.CropQuality == 0 {
		settings.CropQuality = 0.5
	}
	if settings.FallbackQuality == 0 {
		settings.FallbackQuality = 0.4
	}
	if settings.Padding == 0 {
		settings.Padding = 0.15
	}
	return &Materializer{settings: settings}
}

// Materialize crops the source frame to the padded bounding box, scales the
// result and re-encodes it for storage. With a nil box the full frame is
// scaled at slightly lower quality as an unlocalized fallback. A nil frame
// or handle is a diagnosable resource error, not a crash.
func (m *Materializer) Materialize(h *frame.Handle, box *detection.BoundingBox) ([]byte, error) {
	f := h.Frame()
	if f == nil || len(f.Data) == 0 {
		return nil, errors.Newf("no source frame available for thumbnail").
			Component("thumbnail").
			Category(errors.CategoryResource).
			Build()
	}

	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, errors.New(err).
			Component("thumbnail").
			Category(errors.CategoryImage).
			Context("operation", "decode_frame").
			Build()
	}

	quality := m.settings.FallbackQuality
	if box != nil {
		padded := padBox(*box, m.settings.Padding)
		rawBox := displayToRaw(padded, f.Orientation)
		rect := pixelRect(rawBox, img.Bounds())
		if rect.Empty() {
			return nil, errors.Newf("crop rectangle collapsed to empty").
				Component("thumbnail").
				Category(errors.CategoryImage).
				Context("box", *box).
				Build()
		}
		img = cropImage(img, rect)
		quality = m.settings.CropQuality
	}

	// Rotate to display orientation so stored images are upright regardless
	// of how the sensor was held, and so display-space boxes apply directly
	// to stored photos.
	img = rotateToDisplay(img, f.Orientation)

	return m.encode(scaleToWidth(img, m.settings.MaxWidth), quality)
}

// MaterializeEncoded crops an already display-oriented JPEG, such as a
// stored session photo, to the padded bounding box. With a nil box the
// image is re-encoded at fallback quality.
func (m *Materializer) MaterializeEncoded(data []byte, box *detection.BoundingBox) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.Newf("no source photo available for thumbnail").
			Component("thumbnail").
			Category(errors.CategoryResource).
			Build()
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New(err).
			Component("thumbnail").
			Category(errors.CategoryImage).
			Context("operation", "decode_photo").
			Build()
	}

	quality := m.settings.FallbackQuality
	if box != nil {
		padded := padBox(*box, m.settings.Padding)
		rect := pixelRect(padded, img.Bounds())
		if rect.Empty() {
			return nil, errors.Newf("crop rectangle collapsed to empty").
				Component("thumbnail").
				Category(errors.CategoryImage).
				Context("box", *box).
				Build()
		}
		img = cropImage(img, rect)
		quality = m.settings.CropQuality
	}

	return m.encode(scaleToWidth(img, m.settings.MaxWidth), quality)
}

func (m *Materializer) encode(img image.Image, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	opts := &jpeg.Options{Quality: int(quality * 100)}
	if err := jpeg.Encode(&buf, img, opts); err != nil {
		return nil, errors.New(err).
			Component("thumbnail").
			Category(errors.CategoryImage).
			Context("operation", "encode_thumbnail").
			Build()
	}
	return buf.Bytes(), nil
}

// padBox expands the box by fraction pad on each side, clamped to [0, 1].
func padBox(b detection.BoundingBox, pad float64) detection.BoundingBox {
	padY := b.Height() * pad
	padX := b.Width() * pad
	return detection.BoundingBox{
		YMin: clamp01(b.YMin - padY),
		XMin: clamp01(b.XMin - padX),
		YMax: clamp01(b.YMax + padY),
		XMax: clamp01(b.XMax + padX),
	}
}

// displayToRaw maps a box expressed in the frame's logical
// (post-display-rotation) space onto raw pixel space.
//
// The orientation names the rotation that maps raw pixels to display
// space, so the box transform here is the inverse rotation.
func displayToRaw(b detection.BoundingBox, o frame.Orientation) detection.BoundingBox {
	switch o {
	case frame.OrientationRight:
		// display = rotate90CW(raw); inverse: x_r = y_d, y_r = 1 - x_d
		return detection.BoundingBox{
			YMin: 1 - b.XMax,
			XMin: b.YMin,
			YMax: 1 - b.XMin,
			XMax: b.YMax,
		}
	case frame.OrientationLeft:
		// display = rotate90CCW(raw); inverse: x_r = 1 - y_d, y_r = x_d
		return detection.BoundingBox{
			YMin: b.XMin,
			XMin: 1 - b.YMax,
			YMax: b.XMax,
			XMax: 1 - b.YMin,
		}
	case frame.OrientationDown:
		return detection.BoundingBox{
			YMin: 1 - b.YMax,
			XMin: 1 - b.XMax,
			YMax: 1 - b.YMin,
			XMax: 1 - b.XMin,
		}
	default:
		return b
	}
}

// pixelRect converts a normalized raw-space box into a pixel rectangle
// clamped to the image bounds.
func pixelRect(b detection.BoundingBox, bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	rect := image.Rect(
		bounds.Min.X+int(b.XMin*w),
		bounds.Min.Y+int(b.YMin*h),
		bounds.Min.X+int(b.XMax*w),
		bounds.Min.Y+int(b.YMax*h),
	)
	return rect.Intersect(bounds)
}

func cropImage(img image.Image, rect image.Rectangle) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// rotateToDisplay applies the orientation's raw-to-display rotation to an
// already-cropped image.
func rotateToDisplay(img image.Image, o frame.Orientation) image.Image {
	switch o {
	case frame.OrientationRight:
		return rotate90CW(img)
	case frame.OrientationLeft:
		return rotate90CCW(img)
	case frame.OrientationDown:
		return rotate180(img)
	default:
		return img
	}
}

func rotate90CW(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.Y-1-y, x-b.Min.X, img.At(x, y))
		}
	}
	return dst
}

func rotate90CCW(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(y-b.Min.Y, b.Max.X-1-x, img.At(x, y))
		}
	}
	return dst
}

func rotate180(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-x, b.Max.Y-1-y, img.At(x, y))
		}
	}
	return dst
}

// scaleToWidth downscales img to at most maxWidth, preserving aspect.
// Images already narrow enough are returned unchanged.
func scaleToWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxWidth {
		return img
	}
	scale := float64(maxWidth) / float64(b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, int(float64(b.Dy())*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
