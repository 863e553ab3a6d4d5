package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

type mockVisionClient struct {
	mock.Mock
}

func (m *mockVisionClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	args := m.Called(ctx, model, prompt, imgB64)
	return args.String(0), args.Error(1)
}

func (m *mockVisionClient) LocateFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceAnalysis, error) {
	args := m.Called(ctx, model, prompt, imgB64)
	if a := args.Get(0); a != nil {
		return a.(*types.FaceAnalysis), args.Error(1)
	}
	return nil, args.Error(1)
}

func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 90, 255})
		}
	}
	return img
}

func TestLargest(t *testing.T) {
	_, ok := Largest(nil)
	assert.False(t, ok)

	regions := []types.FaceRegion{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 5, Y: 5, Width: 20, Height: 20, Score: 1},
		{X: 9, Y: 9, Width: 40, Height: 10, Score: 2}, // same area as the previous one
		{X: 1, Y: 1, Width: 5, Height: 5},
	}
	best, ok := Largest(regions)
	require.True(t, ok)
	assert.Equal(t, regions[1], best)
}

func TestVisionLocatorConvertsBoxes(t *testing.T) {
	c := new(mockVisionClient)
	c.On("LocateFaces", mock.Anything, "llava", FacePrompt, mock.AnythingOfType("string")).Return(&types.FaceAnalysis{
		Faces: []types.DetectedFace{
			{Confidence: 0.9, Box: types.Box{X: 0.25, Y: 0.1, W: 0.5, H: 0.4}},
			{Confidence: 0.3, Box: types.Box{X: 0, Y: 0, W: 0.1, H: 0.1}},
			{Confidence: 0.8, Box: types.Box{X: 0.9, Y: 0.9, W: 0.5, H: 0.5}},
		},
	}, nil)

	cfg := DefaultVisionConfig()
	cfg.Model = "llava"
	cfg.RequestsPerSecond = 0
	l := NewVisionLocator(c, cfg)

	regions, err := l.Detect(context.Background(), createTestImage(200, 100))
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, types.FaceRegion{X: 50, Y: 10, Width: 100, Height: 40, Score: 0.9}, regions[0])
	// box running off the edge is clipped
	assert.Equal(t, types.FaceRegion{X: 180, Y: 90, Width: 20, Height: 10, Score: 0.8}, regions[1])
	c.AssertExpectations(t)
}

func TestVisionLocatorNoFaces(t *testing.T) {
	c := new(mockVisionClient)
	c.On("LocateFaces", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&types.FaceAnalysis{}, nil)

	l := NewVisionLocator(c, VisionConfig{Model: "llava"})
	regions, err := l.Detect(context.Background(), createTestImage(64, 64))
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestVisionLocatorPropagatesClientFailure(t *testing.T) {
	boom := errors.New("connection refused")
	c := new(mockVisionClient)
	c.On("LocateFaces", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

	l := NewVisionLocator(c, VisionConfig{Model: "llava"})
	regions, err := l.Detect(context.Background(), createTestImage(64, 64))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, regions)
}

func TestVisionLocatorHonoursCancellation(t *testing.T) {
	c := new(mockVisionClient)
	l := NewVisionLocator(c, VisionConfig{Model: "llava", RequestsPerSecond: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Detect(ctx, createTestImage(64, 64))
	assert.ErrorIs(t, err, context.Canceled)
	c.AssertNotCalled(t, "LocateFaces", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVisionLocatorTestVision(t *testing.T) {
	c := new(mockVisionClient)
	c.On("SimpleQuery", mock.Anything, "llava", SimpleTestPrompt, mock.AnythingOfType("string")).Return("a gradient", nil)

	l := NewVisionLocator(c, VisionConfig{Model: "llava"})
	answer, err := l.TestVision(context.Background(), createTestImage(32, 32))
	require.NoError(t, err)
	assert.Equal(t, "a gradient", answer)
}

func TestSaliencyLocator(t *testing.T) {
	l := NewSaliencyLocator(DefaultSaliencyConfig())
	img := createTestImage(240, 160)

	regions, err := l.Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, regions, 1)

	r := regions[0]
	assert.Positive(t, r.Width)
	assert.Equal(t, r.Width, r.Height)
	assert.True(t, r.Rect().In(img.Bounds()))
}

func TestPigoLocatorCascadeSources(t *testing.T) {
	_, err := NewPigoLocator(PigoConfig{CascadePath: "/nonexistent/facefinder"})
	assert.Error(t, err, "an explicit path must exist")
	assert.NotErrorIs(t, err, ErrBackendUnavailable)
}

func TestPigoLocatorBundledCascade(t *testing.T) {
	l, err := NewPigoLocator(DefaultPigoConfig())
	require.NoError(t, err)
	assert.Equal(t, "pigo", l.Name())

	img := createTestImage(320, 240)
	regions, err := l.Detect(context.Background(), img)
	require.NoError(t, err)
	for _, r := range regions {
		assert.True(t, r.Rect().In(img.Bounds()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Detect(ctx, img)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPigoLocatorWithCascadeFile(t *testing.T) {
	path := os.Getenv("PIGO_CASCADE")
	if path == "" {
		t.Skip("PIGO_CASCADE not set")
	}
	cfg := DefaultPigoConfig()
	cfg.CascadePath = path
	_, err := NewPigoLocator(cfg)
	require.NoError(t, err)
}

func TestLocatorFunc(t *testing.T) {
	want := []types.FaceRegion{{X: 1, Y: 2, Width: 3, Height: 4}}
	var l Locator = LocatorFunc(func(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
		return want, nil
	})

	got, err := l.Detect(context.Background(), createTestImage(8, 8))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "func", l.Name())
}
