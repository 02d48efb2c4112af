package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallycam/tallycam-go/internal/frame"
)

func TestBoxFromModelScale(t *testing.T) {
	t.Run("converts 0-1000 scale", func(t *testing.T) {
		b, err := BoxFromModelScale([4]float64{10, 10, 200, 200})
		require.NoError(t, err)
		assert.InDelta(t, 0.01, b.YMin, 1e-9)
		assert.InDelta(t, 0.01, b.XMin, 1e-9)
		assert.InDelta(t, 0.2, b.YMax, 1e-9)
		assert.InDelta(t, 0.2, b.XMax, 1e-9)
		assert.True(t, b.Valid())
	})

	t.Run("clamps overshoot", func(t *testing.T) {
		b, err := BoxFromModelScale([4]float64{-50, 0, 1100, 1000})
		require.NoError(t, err)
		assert.Equal(t, 0.0, b.YMin)
		assert.Equal(t, 1.0, b.YMax)
		assert.True(t, b.Valid())
	})

	t.Run("rejects inverted extents", func(t *testing.T) {
		_, err := BoxFromModelScale([4]float64{500, 500, 100, 600})
		assert.Error(t, err, "yMin > yMax must be rejected")
	})
}

func TestDetectionFrameRelease(t *testing.T) {
	h := frame.NewHandle(&frame.Frame{Data: []byte{0xff, 0xd8}})
	d := &Detection{Name: "Red Mug", Frame: h}

	require.NotNil(t, d.Frame.Frame())
	d.ReleaseFrame()
	assert.Nil(t, d.Frame, "handle must be dropped")

	// Releasing twice must not panic
	d.ReleaseFrame()
}
