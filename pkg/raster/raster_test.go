package raster

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

var marker = color.NRGBA{255, 0, 0, 255}

// createMarkedImage creates a gray image with a red pixel in the bottom-right corner
func createMarkedImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{64, 64, 64, 255})
		}
	}
	img.SetNRGBA(width-1, height-1, marker)
	return img
}

func TestRotateClockwise(t *testing.T) {
	src := createMarkedImage(40, 30)

	tests := []struct {
		rotation types.Rotation
		w, h     int
		mx, my   int
	}{
		{types.Rotate0, 40, 30, 39, 29},
		{types.Rotate90, 30, 40, 0, 39},
		{types.Rotate180, 40, 30, 0, 0},
		{types.Rotate270, 30, 40, 29, 0},
	}

	for _, tt := range tests {
		t.Run(tt.rotation.String(), func(t *testing.T) {
			out := Rotate(src, tt.rotation)
			assert.Equal(t, tt.w, out.Bounds().Dx())
			assert.Equal(t, tt.h, out.Bounds().Dy())
			assert.Equal(t, marker, out.NRGBAAt(tt.mx, tt.my))
		})
	}

	// source untouched
	assert.Equal(t, marker, src.NRGBAAt(39, 29))
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	img := createMarkedImage(64, 48)

	for _, name := range []string{"out.png", "out.jpg"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Save(img, path, DefaultSaveOptions()))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, 64, loaded.Bounds().Dx())
			assert.Equal(t, 48, loaded.Bounds().Dy())
		})
	}
}

func TestEncodeFormats(t *testing.T) {
	img := createMarkedImage(20, 10)
	for _, format := range []string{"", "jpg", "png", "webp"} {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, img, SaveOptions{Format: format, Quality: 90}), format)
		decoded, err := Decode(buf.Bytes())
		require.NoError(t, err, format)
		assert.Equal(t, img.Bounds(), decoded.Bounds(), format)
	}
}

func TestLoadUndecodable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an image"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUndecodable)

	_, err = Load(filepath.Join(dir, "missing.jpg"))
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, "png", FormatFor("a/b.PNG"))
	assert.Equal(t, "webp", FormatFor("x.webp"))
	assert.Equal(t, "jpg", FormatFor("x.jpeg"))
	assert.Equal(t, "jpg", FormatFor("noext"))
}

func TestInfoAndValidate(t *testing.T) {
	img := createMarkedImage(200, 100)
	info := Info(img)
	assert.Equal(t, 200, info.Width)
	assert.Equal(t, 100, info.Height)
	assert.InDelta(t, 2.0, info.AspectRatio, 1e-9)
	assert.Equal(t, 20000, info.Area)

	assert.NoError(t, Validate(img, 50))
	assert.Error(t, Validate(img, 150))
	assert.Error(t, Validate(nil, 1))
}

func TestEncodeBase64Downscales(t *testing.T) {
	img := createMarkedImage(400, 200)

	encoded, err := EncodeBase64(img, "png", 100, 0)
	require.NoError(t, err)

	data, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())
	assert.Equal(t, 50, decoded.Bounds().Dy())
}

func TestDebugOverlay(t *testing.T) {
	img := createMarkedImage(100, 100)
	face := types.FaceRegion{X: 20, Y: 20, Width: 40, Height: 40}
	crop := types.CropRegion{X: 10, Y: 10, Width: 60, Height: 80}

	out := DebugOverlay(img, face, crop)
	assert.Equal(t, color.NRGBA{0, 255, 0, 255}, out.NRGBAAt(20, 30))
	assert.Equal(t, color.NRGBA{255, 204, 0, 255}, out.NRGBAAt(10, 50))
	// original untouched
	assert.Equal(t, color.NRGBA{64, 64, 64, 255}, img.NRGBAAt(20, 30))
}
