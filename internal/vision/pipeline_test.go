package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/spotlight/internal/geometry"
	"github.com/your-org/spotlight/internal/models"
)

func TestPipelineRender(t *testing.T) {
	tr := NewTracker()
	require.True(t, tr.Ingest(det("p1", 0, 0.4, 0.5, 0.9)))
	require.True(t, tr.Ingest(det("p1", 500, 0.6, 0.5, 0.9)))

	rect := geometry.CalculateVideoRenderRect(1920, 1080, 1000, 1000)
	p := NewPipeline(defaultSpotlight)

	frame, ok := p.Render(tr, "p1", 250, rect)
	require.True(t, ok)
	assert.True(t, frame.Valid)
	assert.Equal(t, "p1", frame.SubjectID)
	assert.Equal(t, 250.0, frame.TimestampMs)
	assert.Equal(t, SourceInterpolated, frame.Source)
	assert.InDelta(t, 0.5, frame.Box.CenterX, 1e-9)

	assert.InDelta(t, 500.0, frame.Pixels.CenterX, 1e-9)
	assert.InDelta(t, 500.0, frame.Pixels.CenterY, 1e-9)
	assert.InDelta(t, 100.0, frame.Pixels.Width, 1e-9)
	assert.InDelta(t, 112.5, frame.Pixels.Height, 1e-9)

	assert.Equal(t, frame.Pixels.CenterX, frame.Spotlight.CenterX)
	assert.Equal(t, frame.Pixels.CenterY, frame.Spotlight.CenterY)
	assert.Equal(t, 150.0, frame.Spotlight.Radius)
}

func TestPipelineRenderWithoutViewport(t *testing.T) {
	tr := NewTracker()
	require.True(t, tr.Ingest(det("p1", 0, 0.4, 0.5, 0.9)))

	frame, ok := NewPipeline(defaultSpotlight).Render(tr, "p1", 0, models.VideoRenderRect{})
	require.True(t, ok)
	assert.False(t, frame.Valid)
	assert.Equal(t, models.PixelBox{}, frame.Pixels)
	assert.InDelta(t, 0.4, frame.Box.CenterX, 1e-9)
}

func TestPipelineRenderUnknownSubject(t *testing.T) {
	tr := NewTracker()
	require.True(t, tr.Ingest(det("p1", 0, 0.4, 0.5, 0.9)))

	_, ok := NewPipeline(defaultSpotlight).Render(tr, "p2", 0, geometry.CalculateVideoRenderRect(16, 9, 1600, 900))
	assert.False(t, ok)
}
