package models

// RawBox is a bounding box as it arrives at the ingestion boundary.
// Any field may be absent; coordinates are normalized to [0,1].
type RawBox struct {
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	Width      *float64 `json:"width,omitempty"`
	Height     *float64 `json:"height,omitempty"`
	CenterX    *float64 `json:"centerX,omitempty"`
	CenterY    *float64 `json:"centerY,omitempty"`
	TopLeftX   *float64 `json:"topLeftX,omitempty"`
	TopLeftY   *float64 `json:"topLeftY,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// BoundingBox is a complete, validated box. X/Y is the top-left corner and
// CenterX = X + Width/2, CenterY = Y + Height/2.
type BoundingBox struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	CenterX    float64 `json:"centerX"`
	CenterY    float64 `json:"centerY"`
	TopLeftX   float64 `json:"topLeftX"`
	TopLeftY   float64 `json:"topLeftY"`
	Confidence float64 `json:"confidence"`
}

// BoxFromCenter builds a complete box around a centre point.
func BoxFromCenter(cx, cy, w, h, confidence float64) BoundingBox {
	x := cx - w/2
	y := cy - h/2
	return BoundingBox{
		X:          x,
		Y:          y,
		Width:      w,
		Height:     h,
		CenterX:    cx,
		CenterY:    cy,
		TopLeftX:   x,
		TopLeftY:   y,
		Confidence: confidence,
	}
}

// Raw returns the box with every field present, for re-validation.
func (b BoundingBox) Raw() RawBox {
	return RawBox{
		X:          Float(b.X),
		Y:          Float(b.Y),
		Width:      Float(b.Width),
		Height:     Float(b.Height),
		CenterX:    Float(b.CenterX),
		CenterY:    Float(b.CenterY),
		TopLeftX:   Float(b.TopLeftX),
		TopLeftY:   Float(b.TopLeftY),
		Confidence: Float(b.Confidence),
	}
}

// Area is width*height in normalized units.
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Float is a helper for building RawBox literals.
func Float(v float64) *float64 { return &v }

// Detection is one validated sample for one subject.
type Detection struct {
	ID          string      `json:"id"`
	TimestampMs float64     `json:"timestampMs"`
	Box         BoundingBox `json:"box"`
}

// HistoryEntry is one keyframe in a tracker's lock history.
type HistoryEntry struct {
	TimestampMs float64     `json:"timestampMs"`
	Box         BoundingBox `json:"box"`
}

// VideoRenderRect is the pixel sub-rectangle of a container where the video
// is painted after aspect-ratio fitting.
type VideoRenderRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PixelBox is a box in container pixel space.
type PixelBox struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	CenterX    float64 `json:"centerX"`
	CenterY    float64 `json:"centerY"`
	Confidence float64 `json:"confidence"`
}
