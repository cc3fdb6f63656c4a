package feed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/your-org/spotlight/pkg/dto"
)

// Replay reads detection frames from JSON lines. Blank lines and lines
// starting with # are skipped.
type Replay struct {
	sc        *bufio.Scanner
	sessionID string
	line      int
	lastMs    float64
	started   bool
}

func NewReplay(r io.Reader, sessionID string) *Replay {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Replay{sc: sc, sessionID: sessionID}
}

// Next returns the next frame, the gap since the previous one in ms, and
// io.EOF at the end of input. The session id is overridden when set.
func (r *Replay) Next() (dto.DetectionFrame, float64, error) {
	for r.sc.Scan() {
		r.line++
		text := strings.TrimSpace(r.sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var frame dto.DetectionFrame
		if err := json.Unmarshal([]byte(text), &frame); err != nil {
			return dto.DetectionFrame{}, 0, fmt.Errorf("line %d: %w", r.line, err)
		}
		if r.sessionID != "" {
			frame.SessionID = r.sessionID
		}

		var gap float64
		if r.started && frame.TimestampMs > r.lastMs {
			gap = frame.TimestampMs - r.lastMs
		}
		r.started = true
		r.lastMs = frame.TimestampMs
		return frame, gap, nil
	}
	if err := r.sc.Err(); err != nil {
		return dto.DetectionFrame{}, 0, fmt.Errorf("read replay: %w", err)
	}
	return dto.DetectionFrame{}, 0, io.EOF
}
