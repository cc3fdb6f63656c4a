package geometry

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/your-org/spotlight/internal/models"
)

func TestCalculateVideoRenderRect(t *testing.T) {
	tests := []struct {
		name                   string
		videoW, videoH         float64
		containerW, containerH float64
		want                   models.VideoRenderRect
	}{
		{"letterbox wide video", 1920, 1080, 1000, 1000, models.VideoRenderRect{X: 0, Y: 218.75, Width: 1000, Height: 562.5}},
		{"pillarbox tall video", 1080, 1920, 1000, 1000, models.VideoRenderRect{X: 218.75, Y: 0, Width: 562.5, Height: 1000}},
		{"exact fit", 1280, 720, 640, 360, models.VideoRenderRect{X: 0, Y: 0, Width: 640, Height: 360}},
		{"zero video width", 0, 1080, 1000, 1000, models.VideoRenderRect{}},
		{"negative container", 1920, 1080, -1, 1000, models.VideoRenderRect{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateVideoRenderRect(tt.videoW, tt.videoH, tt.containerW, tt.containerH)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("render rect mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizedPixelsRoundTrip(t *testing.T) {
	rect := CalculateVideoRenderRect(1920, 1080, 1000, 1000)
	box := models.BoxFromCenter(0.4, 0.6, 0.2, 0.3, 0.8)

	pixels := NormalizedToPixels(box, rect)
	assert.InDelta(t, 400.0, pixels.CenterX, 1e-9)
	assert.InDelta(t, 218.75+0.6*562.5, pixels.CenterY, 1e-9)
	assert.InDelta(t, 0.8, pixels.Confidence, 1e-9)

	back := PixelsToNormalized(pixels, rect)
	if diff := cmp.Diff(box, back, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPixelsToNormalizedEmptyRect(t *testing.T) {
	got := PixelsToNormalized(models.PixelBox{X: 10, Width: 20}, models.VideoRenderRect{})
	assert.Equal(t, models.BoundingBox{}, got)
}

func TestClickToNormalized(t *testing.T) {
	rect := CalculateVideoRenderRect(1920, 1080, 1000, 1000)

	x, y := ClickToNormalized(500, 500, rect)
	assert.InDelta(t, 0.5, x, 1e-9)
	assert.InDelta(t, 0.5, y, 1e-9)

	// Clicks on the letterbox bands clamp to the nearest edge.
	x, y = ClickToNormalized(500, 50, rect)
	assert.InDelta(t, 0.5, x, 1e-9)
	assert.Equal(t, 0.0, y)

	x, y = ClickToNormalized(1200, 990, rect)
	assert.Equal(t, 1.0, x)
	assert.Equal(t, 1.0, y)

	x, y = ClickToNormalized(10, 10, models.VideoRenderRect{})
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)
}

func TestIsPointInVideoRect(t *testing.T) {
	rect := models.VideoRenderRect{X: 0, Y: 218.75, Width: 1000, Height: 562.5}

	assert.True(t, IsPointInVideoRect(500, 500, rect))
	assert.True(t, IsPointInVideoRect(0, 218.75, rect))
	assert.False(t, IsPointInVideoRect(500, 100, rect))
	assert.False(t, IsPointInVideoRect(500, 900, rect))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(models.VideoRenderRect{}))
	assert.True(t, IsEmpty(models.VideoRenderRect{Width: 10}))
	assert.False(t, IsEmpty(models.VideoRenderRect{Width: 10, Height: 10}))
}

func TestNormalizedCenterUsesCarriedCentre(t *testing.T) {
	box := models.BoundingBox{X: 0.1, Width: 0.2, CenterX: 0.25, CenterY: 0.4}
	x, y := NormalizedCenter(box)
	assert.Equal(t, 0.25, x)
	assert.Equal(t, 0.4, y)
}
