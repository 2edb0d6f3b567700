package encoder

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruxview/cruxview/internal/models"
)

// noisyImage produces a frame that compresses poorly, so payloads
// stay above the minimum size floor.
func noisyImage(w, h int) image.Image {
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

func TestEncodeResizesToFit(t *testing.T) {
	e := New(Options{TargetWidth: 640, TargetHeight: 480}, nil)
	frame := models.RawFrame{Index: 30, Image: noisyImage(1920, 1080)}

	sf, err := e.Encode(frame, 30)
	require.NoError(t, err)

	assert.LessOrEqual(t, sf.Width, 640)
	assert.LessOrEqual(t, sf.Height, 480)
	// 16:9 source constrained by width: 640x360.
	assert.Equal(t, 640, sf.Width)
	assert.Equal(t, 360, sf.Height)
	assert.Equal(t, 1.0, sf.Timestamp)
	assert.NotEmpty(t, sf.Data)
}

func TestEncodePreservesAspectForTallFrames(t *testing.T) {
	e := New(Options{TargetWidth: 640, TargetHeight: 480}, nil)
	frame := models.RawFrame{Index: 0, Image: noisyImage(1080, 1920)}

	sf, err := e.Encode(frame, 30)
	require.NoError(t, err)
	// 9:16 source constrained by height: 270x480.
	assert.Equal(t, 270, sf.Width)
	assert.Equal(t, 480, sf.Height)
}

func TestEncodeSmallImagePassesThrough(t *testing.T) {
	e := New(Options{MinBytes: 100}, nil)
	frame := models.RawFrame{Index: 0, Image: noisyImage(320, 240)}

	sf, err := e.Encode(frame, 30)
	require.NoError(t, err)
	assert.Equal(t, 320, sf.Width)
	assert.Equal(t, 240, sf.Height)
}

func TestEncodeRejectsTinyPayload(t *testing.T) {
	e := New(Options{MinBytes: 1 << 20}, nil)
	frame := models.RawFrame{Index: 0, Image: noisyImage(64, 64)}

	_, err := e.Encode(frame, 30)
	assert.ErrorIs(t, err, ErrPayloadTooSmall)
}

func TestEncodeNilImage(t *testing.T) {
	e := New(Options{}, nil)
	_, err := e.Encode(models.RawFrame{Index: 3}, 30)
	assert.Error(t, err)
}

func TestJPEGMagicBytes(t *testing.T) {
	e := New(Options{MinBytes: 100}, nil)
	sf, err := e.Encode(models.RawFrame{Index: 0, Image: noisyImage(320, 240)}, 30)
	require.NoError(t, err)
	require.Greater(t, len(sf.Data), 2)
	assert.Equal(t, byte(0xFF), sf.Data[0])
	assert.Equal(t, byte(0xD8), sf.Data[1])
}
