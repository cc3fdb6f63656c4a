// Package feed produces detection frames for the ingestor: synthetic player
// motion or a recorded JSON-lines replay.
package feed

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/your-org/spotlight/internal/models"
	"github.com/your-org/spotlight/pkg/dto"
)

const (
	MinIntervalMs = 500
	MaxIntervalMs = 1400

	edgeLow  = 0.1
	edgeHigh = 0.9
)

type player struct {
	id     string
	cx, cy float64
	vx, vy float64 // units per frame
	phase  float64
}

// Synthetic moves a few players around the pitch, bouncing off the edges,
// and samples them at irregular 500-1400ms intervals.
type Synthetic struct {
	sessionID string
	rng       *rand.Rand
	players   []*player
	nowMs     float64
}

// NewSynthetic creates n players from a fixed seed so runs are reproducible.
func NewSynthetic(sessionID string, n int, seed uint64) *Synthetic {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	s := &Synthetic{sessionID: sessionID, rng: rng}
	for i := 0; i < n; i++ {
		s.players = append(s.players, &player{
			id:    playerID(i),
			cx:    edgeLow + rng.Float64()*(edgeHigh-edgeLow),
			cy:    edgeLow + rng.Float64()*(edgeHigh-edgeLow),
			vx:    (rng.Float64() - 0.5) * 0.004,
			vy:    (rng.Float64() - 0.5) * 0.003,
			phase: float64(i),
		})
	}
	return s
}

// Next advances the clock by a random interval and returns the frame sampled
// there, along with the interval used.
func (s *Synthetic) Next() (dto.DetectionFrame, float64) {
	interval := MinIntervalMs + s.rng.Float64()*(MaxIntervalMs-MinIntervalMs)
	s.nowMs += interval

	t := s.nowMs / 1000
	frame := dto.DetectionFrame{
		SessionID:   s.sessionID,
		TimestampMs: s.nowMs,
		Players:     make([]dto.Detection, 0, len(s.players)),
	}
	for _, p := range s.players {
		p.step(t)
		w := math.Abs(0.08 + 0.02*math.Sin(t*2+p.phase))
		h := math.Abs(0.15 + 0.03*math.Cos(t*1.5+p.phase))
		box := models.BoxFromCenter(p.cx, p.cy, w, h, 0.9+0.1*math.Sin(s.nowMs*0.001+p.phase))
		frame.Players = append(frame.Players, dto.Detection{ID: p.id, RawBox: box.Raw()})
	}
	return frame, interval
}

func (p *player) step(t float64) {
	p.cx += p.vx + 0.05*math.Sin(t*0.8+p.phase)*0.001
	p.cy += p.vy + 0.03*math.Cos(t*1.2+p.phase)*0.001

	if p.cx < edgeLow || p.cx > edgeHigh {
		p.vx = -p.vx
	}
	if p.cy < edgeLow || p.cy > edgeHigh {
		p.vy = -p.vy
	}
	p.cx = math.Max(edgeLow, math.Min(edgeHigh, p.cx))
	p.cy = math.Max(edgeLow, math.Min(edgeHigh, p.cy))
}

func playerID(i int) string {
	return fmt.Sprintf("player_%d", i+1)
}
