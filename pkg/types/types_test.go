package types

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFaceRegionGeometry(t *testing.T) {
	r := FaceRegion{X: 150, Y: 80, Width: 100, Height: 100}

	cx, cy := r.Center()
	assert.Equal(t, 200, cx)
	assert.Equal(t, 130, cy)
	assert.Equal(t, 10000, r.Area())
	assert.Equal(t, image.Rect(150, 80, 250, 180), r.Rect())
}

func TestCropRegionEmpty(t *testing.T) {
	assert.True(t, CropRegion{Width: 0, Height: 10}.Empty())
	assert.True(t, CropRegion{Width: 10, Height: 0}.Empty())
	assert.False(t, CropRegion{Width: 3, Height: 4}.Empty())
}

func TestReasonRetryable(t *testing.T) {
	tests := []struct {
		reason Reason
		want   bool
	}{
		{ReasonNone, false},
		{ReasonUndecodable, false},
		{ReasonLowQuality, true},
		{ReasonNoFaceFound, true},
		{ReasonEmptyCrop, true},
	}
	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reason.Retryable())
		})
	}
}

func TestSearchOrder(t *testing.T) {
	assert.Equal(t, []Rotation{Rotate0, Rotate90, Rotate180, Rotate270}, SearchOrder())
}

func TestOutcomeSuccess(t *testing.T) {
	assert.True(t, Outcome{Reason: ReasonNone}.Success())
	assert.False(t, Outcome{Reason: ReasonEmptyCrop}.Success())
}
