// Package geometry maps between normalized video coordinates and pixel
// coordinates inside a letterboxed or pillarboxed render area.
package geometry

import (
	"log/slog"
	"math"

	"github.com/your-org/spotlight/internal/models"
)

// CalculateVideoRenderRect fits a video of videoW x videoH into a container
// preserving aspect ratio. A wider video is letterboxed (bands above and
// below), a taller one pillarboxed (bands left and right).
func CalculateVideoRenderRect(videoW, videoH, containerW, containerH float64) models.VideoRenderRect {
	if !positive(videoW) || !positive(videoH) || !positive(containerW) || !positive(containerH) {
		slog.Warn("invalid dimensions for render rect",
			"video_w", videoW, "video_h", videoH,
			"container_w", containerW, "container_h", containerH,
		)
		return models.VideoRenderRect{}
	}

	videoAspect := videoW / videoH
	containerAspect := containerW / containerH

	if videoAspect > containerAspect {
		h := containerW / videoAspect
		return models.VideoRenderRect{
			X:      0,
			Y:      (containerH - h) / 2,
			Width:  containerW,
			Height: h,
		}
	}

	w := containerH * videoAspect
	return models.VideoRenderRect{
		X:      (containerW - w) / 2,
		Y:      0,
		Width:  w,
		Height: containerH,
	}
}

// IsEmpty reports whether the rect cannot be used for a transform.
func IsEmpty(r models.VideoRenderRect) bool {
	return !positive(r.Width) || !positive(r.Height)
}

// NormalizedToPixels places a normalized box inside the render rect.
func NormalizedToPixels(box models.BoundingBox, r models.VideoRenderRect) models.PixelBox {
	return models.PixelBox{
		X:          r.X + box.X*r.Width,
		Y:          r.Y + box.Y*r.Height,
		Width:      box.Width * r.Width,
		Height:     box.Height * r.Height,
		CenterX:    r.X + box.CenterX*r.Width,
		CenterY:    r.Y + box.CenterY*r.Height,
		Confidence: box.Confidence,
	}
}

// PixelsToNormalized is the inverse of NormalizedToPixels. An empty rect
// yields a zero box.
func PixelsToNormalized(p models.PixelBox, r models.VideoRenderRect) models.BoundingBox {
	if IsEmpty(r) {
		slog.Warn("pixels to normalized with empty render rect", "rect", r)
		return models.BoundingBox{}
	}

	x := (p.X - r.X) / r.Width
	y := (p.Y - r.Y) / r.Height
	return models.BoundingBox{
		X:          x,
		Y:          y,
		Width:      p.Width / r.Width,
		Height:     p.Height / r.Height,
		CenterX:    (p.CenterX - r.X) / r.Width,
		CenterY:    (p.CenterY - r.Y) / r.Height,
		TopLeftX:   x,
		TopLeftY:   y,
		Confidence: p.Confidence,
	}
}

// ClickToNormalized maps a pointer position in container pixels to
// normalized video coordinates, clamped to [0,1] even inside the padding.
func ClickToNormalized(clickX, clickY float64, r models.VideoRenderRect) (float64, float64) {
	if IsEmpty(r) {
		return 0, 0
	}
	nx := clamp01((clickX - r.X) / r.Width)
	ny := clamp01((clickY - r.Y) / r.Height)
	return nx, ny
}

// IsPointInVideoRect reports whether a pixel lies on the painted video.
func IsPointInVideoRect(x, y float64, r models.VideoRenderRect) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// NormalizedCenter returns the box centre as carried on the box.
func NormalizedCenter(box models.BoundingBox) (float64, float64) {
	return box.CenterX, box.CenterY
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
