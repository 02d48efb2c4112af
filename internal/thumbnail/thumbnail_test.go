package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallycam/tallycam-go/internal/conf"
	"github.com/tallycam/tallycam-go/internal/detection"
	"github.com/tallycam/tallycam-go/internal/errors"
	"github.com/tallycam/tallycam-go/internal/frame"
)

func encodedFrame(t *testing.T, w, h int, o frame.Orientation) *frame.Handle {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return frame.NewHandle(&frame.Frame{Data: buf.Bytes(), Width: w, Height: h, Orientation: o})
}

func decodeThumb(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestMaterializeCrop(t *testing.T) {
	m := New(conf.ThumbnailSettings{})
	h := encodedFrame(t, 800, 600, frame.OrientationUp)

	box := &detection.BoundingBox{YMin: 0.25, XMin: 0.25, YMax: 0.75, XMax: 0.75}
	data, err := m.Materialize(h, box)
	require.NoError(t, err)

	img := decodeThumb(t, data)
	// 0.5 of width padded by 15% per side = 0.65 of 800 = 520 px wide,
	// 0.65 of 600 = 390 px tall, then scaled to max width 480
	assert.Equal(t, 480, img.Bounds().Dx(), "crop should be scaled to max width")
	assert.Equal(t, 360, img.Bounds().Dy(), "aspect ratio preserved by scaling")
}

func TestMaterializeFallback(t *testing.T) {
	m := New(conf.ThumbnailSettings{})
	h := encodedFrame(t, 800, 600, frame.OrientationUp)

	data, err := m.Materialize(h, nil)
	require.NoError(t, err)

	img := decodeThumb(t, data)
	assert.Equal(t, 480, img.Bounds().Dx())
	assert.Equal(t, 360, img.Bounds().Dy(), "full frame keeps its aspect ratio")
}

func TestMaterializeSmallFrameNotUpscaled(t *testing.T) {
	m := New(conf.ThumbnailSettings{})
	h := encodedFrame(t, 320, 240, frame.OrientationUp)

	data, err := m.Materialize(h, nil)
	require.NoError(t, err)
	img := decodeThumb(t, data)
	assert.Equal(t, 320, img.Bounds().Dx(), "narrow frames must not be upscaled")
}

func TestMaterializeFallbackRotated(t *testing.T) {
	m := New(conf.ThumbnailSettings{})
	h := encodedFrame(t, 640, 480, frame.OrientationRight)

	data, err := m.Materialize(h, nil)
	require.NoError(t, err)

	img := decodeThumb(t, data)
	assert.Greater(t, img.Bounds().Dy(), img.Bounds().Dx(),
		"sideways capture must be stored upright (portrait)")
}

func TestMaterializeEncoded(t *testing.T) {
	m := New(conf.ThumbnailSettings{})
	h := encodedFrame(t, 800, 600, frame.OrientationUp)
	photo, err := m.Materialize(h, nil)
	require.NoError(t, err)

	t.Run("crop", func(t *testing.T) {
		box := &detection.BoundingBox{YMin: 0.2, XMin: 0.2, YMax: 0.6, XMax: 0.6}
		data, err := m.MaterializeEncoded(photo, box)
		require.NoError(t, err)
		img := decodeThumb(t, data)
		assert.Positive(t, img.Bounds().Dx())
		assert.LessOrEqual(t, img.Bounds().Dx(), 480)
	})

	t.Run("nil box re-encodes whole photo", func(t *testing.T) {
		data, err := m.MaterializeEncoded(photo, nil)
		require.NoError(t, err)
		img := decodeThumb(t, data)
		assert.Equal(t, 480, img.Bounds().Dx())
	})

	t.Run("empty data", func(t *testing.T) {
		_, err := m.MaterializeEncoded(nil, nil)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryResource))
	})

	t.Run("garbage data", func(t *testing.T) {
		_, err := m.MaterializeEncoded([]byte("not a jpeg"), nil)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryImage))
	})
}

func TestMaterializeMissingFrame(t *testing.T) {
	m := New(conf.ThumbnailSettings{})

	t.Run("released handle", func(t *testing.T) {
		h := encodedFrame(t, 100, 100, frame.OrientationUp)
		h.Release()
		_, err := m.Materialize(h, nil)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryResource))
	})

	t.Run("nil handle", func(t *testing.T) {
		_, err := m.Materialize(nil, nil)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryResource))
	})
}

func TestMaterializeOrientations(t *testing.T) {
	m := New(conf.ThumbnailSettings{})
	// Landscape sensor, portrait display for Right/Left
	box := &detection.BoundingBox{YMin: 0.1, XMin: 0.1, YMax: 0.4, XMax: 0.5}

	for _, o := range []frame.Orientation{
		frame.OrientationUp,
		frame.OrientationRight,
		frame.OrientationLeft,
		frame.OrientationDown,
	} {
		h := encodedFrame(t, 640, 480, o)
		data, err := m.Materialize(h, box)
		require.NoError(t, err, "orientation %v", o)
		img := decodeThumb(t, data)
		assert.Positive(t, img.Bounds().Dx(), "orientation %v", o)
		assert.Positive(t, img.Bounds().Dy(), "orientation %v", o)
	}
}

func TestDisplayToRawPreservesValidity(t *testing.T) {
	boxes := []detection.BoundingBox{
		{YMin: 0, XMin: 0, YMax: 1, XMax: 1},
		{YMin: 0.1, XMin: 0.2, YMax: 0.3, XMax: 0.4},
		{YMin: 0.5, XMin: 0.5, YMax: 0.5, XMax: 0.5},
	}
	orientations := []frame.Orientation{
		frame.OrientationUp,
		frame.OrientationRight,
		frame.OrientationLeft,
		frame.OrientationDown,
	}

	for _, b := range boxes {
		for _, o := range orientations {
			got := displayToRaw(b, o)
			assert.True(t, got.Valid(), "box %+v orientation %v produced invalid %+v", b, o, got)
		}
	}
}

func TestDisplayToRawRoundTrip(t *testing.T) {
	b := detection.BoundingBox{YMin: 0.1, XMin: 0.2, YMax: 0.6, XMax: 0.9}

	// Right and Left are inverse rotations of each other
	right := displayToRaw(b, frame.OrientationRight)
	back := displayToRaw(right, frame.OrientationLeft)
	assert.InDelta(t, b.YMin, back.YMin, 1e-9)
	assert.InDelta(t, b.XMin, back.XMin, 1e-9)
	assert.InDelta(t, b.YMax, back.YMax, 1e-9)
	assert.InDelta(t, b.XMax, back.XMax, 1e-9)

	// Down is its own inverse
	down := displayToRaw(displayToRaw(b, frame.OrientationDown), frame.OrientationDown)
	assert.InDelta(t, b.XMax, down.XMax, 1e-9)
}

func TestPadBoxClamped(t *testing.T) {
	b := detection.BoundingBox{YMin: 0.0, XMin: 0.0, YMax: 0.9, XMax: 0.9}
	padded := padBox(b, 0.15)
	assert.True(t, padded.Valid())
	assert.GreaterOrEqual(t, padded.YMin, 0.0)
	assert.LessOrEqual(t, padded.YMax, 1.0)
}

func TestPixelRectInBounds(t *testing.T) {
	bounds := image.Rect(0, 0, 640, 480)
	rect := pixelRect(detection.BoundingBox{YMin: -0.2, XMin: 0.5, YMax: 1.5, XMax: 2.0}, bounds)
	assert.True(t, rect.In(bounds), "clamped rect must stay inside the source image")
}
