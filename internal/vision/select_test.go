package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/spotlight/internal/models"
)

func candidate(id string, cx, cy, w, h, conf float64) models.Detection {
	return models.Detection{ID: id, Box: models.BoxFromCenter(cx, cy, w, h, conf)}
}

func TestMostProminent(t *testing.T) {
	dets := []models.Detection{
		candidate("far", 0.1, 0.1, 0.05, 0.1, 0.9),
		candidate("near", 0.5, 0.6, 0.2, 0.4, 0.6),
		candidate("blurry", 0.8, 0.6, 0.25, 0.4, 0.3),
	}

	got, ok := MostProminent(dets)
	require.True(t, ok)
	assert.Equal(t, "near", got.ID)

	_, ok = MostProminent(nil)
	assert.False(t, ok)
}

func TestMostProminentTieKeepsFirst(t *testing.T) {
	dets := []models.Detection{
		candidate("a", 0.2, 0.5, 0.1, 0.1, 1),
		candidate("b", 0.8, 0.5, 0.1, 0.1, 1),
	}

	got, ok := MostProminent(dets)
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)
}

func TestNearestTo(t *testing.T) {
	dets := []models.Detection{
		candidate("left", 0.2, 0.5, 0.1, 0.2, 1),
		candidate("right", 0.8, 0.5, 0.1, 0.2, 1),
	}

	got, ok := NearestTo(dets, 0.7, 0.4)
	require.True(t, ok)
	assert.Equal(t, "right", got.ID)

	_, ok = NearestTo(nil, 0.5, 0.5)
	assert.False(t, ok)
}
