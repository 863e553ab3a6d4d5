package cropper

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	return img
}

func TestMarginSplitWorkedExample(t *testing.T) {
	face := types.FaceRegion{X: 150, Y: 80, Width: 100, Height: 100}

	region, err := ComputeCrop(face, 400, 300, MarginSplit{Top: 0.2, Bottom: 0.2})
	require.NoError(t, err)
	assert.Equal(t, types.CropRegion{X: 147, Y: 60, Width: 105, Height: 140}, region)

	out, err := Render(createTestImage(400, 300), region, DefaultWidth, DefaultHeight)
	require.NoError(t, err)
	assert.Equal(t, 192, out.Bounds().Dx())
	assert.Equal(t, 248, out.Bounds().Dy())
}

func TestMarginSplitEdgeShift(t *testing.T) {
	strategy := MarginSplit{Top: 0.2, Bottom: 0.2}

	tests := []struct {
		name string
		face types.FaceRegion
		want types.CropRegion
	}{
		{
			name: "top edge shifts region down",
			face: types.FaceRegion{X: 150, Y: 5, Width: 100, Height: 100},
			want: types.CropRegion{X: 147, Y: 0, Width: 105, Height: 140},
		},
		{
			name: "bottom edge shifts region up",
			face: types.FaceRegion{X: 150, Y: 190, Width: 100, Height: 100},
			want: types.CropRegion{X: 147, Y: 160, Width: 105, Height: 140},
		},
		{
			name: "left edge shifts region right",
			face: types.FaceRegion{X: 0, Y: 80, Width: 100, Height: 100},
			want: types.CropRegion{X: 0, Y: 60, Width: 105, Height: 140},
		},
		{
			name: "right edge shifts region left",
			face: types.FaceRegion{X: 300, Y: 80, Width: 100, Height: 100},
			want: types.CropRegion{X: 295, Y: 60, Width: 105, Height: 140},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeCrop(tt.face, 400, 300, strategy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeCropRejectsOversizedRegion(t *testing.T) {
	tests := []struct {
		name          string
		face          types.FaceRegion
		width, height int
	}{
		{"taller than raster", types.FaceRegion{X: 150, Y: 10, Width: 80, Height: 80}, 400, 100},
		{"wider than raster", types.FaceRegion{X: 0, Y: 100, Width: 40, Height: 40}, 40, 400},
		{"zero face", types.FaceRegion{X: 10, Y: 10}, 400, 400},
		{"empty raster", types.FaceRegion{X: 0, Y: 0, Width: 10, Height: 10}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeCrop(tt.face, tt.width, tt.height, MarginSplit{Top: 0.2, Bottom: 0.2})
			assert.ErrorIs(t, err, ErrEmptyCrop)
		})
	}
}

func TestUniformPad(t *testing.T) {
	tests := []struct {
		name     string
		face     types.FaceRegion
		fraction float64
		want     types.CropRegion
	}{
		{
			name:     "square face grows in height",
			face:     types.FaceRegion{X: 100, Y: 100, Width: 50, Height: 50},
			fraction: 0.2,
			want:     types.CropRegion{X: 90, Y: 78, Width: 70, Height: 94},
		},
		{
			name:     "tall face grows in width",
			face:     types.FaceRegion{X: 100, Y: 100, Width: 30, Height: 60},
			fraction: 0,
			want:     types.CropRegion{X: 92, Y: 100, Width: 45, Height: 60},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeCrop(tt.face, 400, 400, UniformPad{Fraction: tt.fraction})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeCropInvariants(t *testing.T) {
	strategies := []Strategy{
		MarginSplit{Top: 0.2, Bottom: 0.2},
		MarginSplit{Top: 0.3, Bottom: 0.3},
		UniformPad{Fraction: 0.2},
		UniformPad{Fraction: 0.4},
	}
	sizes := [][2]int{{400, 300}, {300, 400}, {1000, 300}, {120, 160}, {64, 64}}

	for _, s := range strategies {
		for _, size := range sizes {
			w, h := size[0], size[1]
			for fx := 0; fx < w; fx += w / 7 {
				for fy := 0; fy < h; fy += h / 7 {
					for _, fs := range []int{8, 30, 75} {
						face := types.FaceRegion{X: fx, Y: fy, Width: min(fs, w-fx), Height: min(fs, h-fy)}
						got, err := ComputeCrop(face, w, h, s)
						if err != nil {
							assert.ErrorIs(t, err, ErrEmptyCrop)
							continue
						}
						assert.Positive(t, got.Height)
						assert.Equal(t, got.Height*3/4, got.Width, "ratio for %v on %dx%d with %s", face, w, h, s.Name())
						assert.GreaterOrEqual(t, got.X, 0)
						assert.GreaterOrEqual(t, got.Y, 0)
						assert.LessOrEqual(t, got.X+got.Width, w)
						assert.LessOrEqual(t, got.Y+got.Height, h)
					}
				}
			}
		}
	}
}

func TestComputeCropDeterministic(t *testing.T) {
	img := createTestImage(400, 300)
	face := types.FaceRegion{X: 150, Y: 80, Width: 100, Height: 100}
	c := New(MarginSplit{Top: 0.2, Bottom: 0.2}, DefaultWidth, DefaultHeight)

	first, r1, err := c.Crop(img, face)
	require.NoError(t, err)
	second, r2, err := c.Crop(img, face)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, first.Pix, second.Pix)
}

func TestRenderAreaAverage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 300, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 300; x++ {
			img.SetNRGBA(x, y, color.NRGBA{200, 200, 200, 255})
		}
	}

	out, err := Render(img, types.CropRegion{X: 0, Y: 0, Width: 300, Height: 400}, 192, 248)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{200, 200, 200, 255}, out.NRGBAAt(96, 124))
}

func TestRenderRejectsOutOfBounds(t *testing.T) {
	img := createTestImage(100, 100)

	_, err := Render(img, types.CropRegion{X: 50, Y: 50, Width: 75, Height: 100}, 192, 248)
	assert.ErrorIs(t, err, ErrEmptyCrop)

	_, err = Render(img, types.CropRegion{}, 192, 248)
	assert.ErrorIs(t, err, ErrEmptyCrop)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("margin_split", 0.3, 0.3, 0)
	require.NoError(t, err)
	assert.Equal(t, MarginSplit{Top: 0.3, Bottom: 0.3}, s)

	s, err = ParseStrategy("uniform_pad", 0, 0, 0.4)
	require.NoError(t, err)
	assert.Equal(t, UniformPad{Fraction: 0.4}, s)

	_, err = ParseStrategy("stretch", 0, 0, 0)
	assert.Error(t, err)
}

func TestNewDefaultsSize(t *testing.T) {
	c := New(UniformPad{Fraction: 0.2}, 0, 0)
	assert.Equal(t, DefaultWidth, c.width)
	assert.Equal(t, DefaultHeight, c.height)
	assert.Equal(t, "uniform_pad", c.Strategy().Name())
}

func BenchmarkComputeCrop(b *testing.B) {
	face := types.FaceRegion{X: 150, Y: 80, Width: 100, Height: 100}
	s := MarginSplit{Top: 0.2, Bottom: 0.2}
	for i := 0; i < b.N; i++ {
		_, _ = ComputeCrop(face, 400, 300, s)
	}
}
