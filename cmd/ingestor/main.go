package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/spotlight/internal/config"
	"github.com/your-org/spotlight/internal/feed"
	"github.com/your-org/spotlight/internal/observability"
	"github.com/your-org/spotlight/internal/queue"
	"github.com/your-org/spotlight/internal/session"
	"github.com/your-org/spotlight/pkg/dto"
)

// source yields frames and the gap to wait before publishing each.
type source func() (dto.DetectionFrame, float64, error)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	sessionID := flag.String("session", "", "target session id (required)")
	replayPath := flag.String("replay", "", "JSON-lines file of detection frames; synthetic motion when empty")
	players := flag.Int("players", 3, "number of synthetic players")
	seed := flag.Uint64("seed", 1, "synthetic motion seed")
	frames := flag.Int("frames", 0, "stop after this many frames (0 = unlimited)")
	speed := flag.Float64("speed", 1.0, "playback speed multiplier")
	reset := flag.Bool("reset", false, "reset the session's tracker before streaming")
	closeAfter := flag.Bool("close", false, "close the session when the feed ends")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting spotlight ingestor", "session_id", *sessionID, "replay", *replayPath)

	if *sessionID == "" {
		slog.Error("-session is required")
		os.Exit(2)
	}
	if *speed <= 0 {
		*speed = 1
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	var next source
	if *replayPath != "" {
		f, err := os.Open(*replayPath)
		if err != nil {
			slog.Error("open replay", "path", *replayPath, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		next = feed.NewReplay(f, *sessionID).Next
	} else {
		syn := feed.NewSynthetic(*sessionID, *players, *seed)
		next = func() (dto.DetectionFrame, float64, error) {
			frame, gap := syn.Next()
			return frame, gap, nil
		}
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("ingestor metrics listening", "addr", ":8081")
		if err := http.ListenAndServe(":8081", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down ingestor...")
		cancel()
	}()

	if *reset {
		if err := sendCommand(producer, session.Command{Action: "reset", SessionID: *sessionID}); err != nil {
			slog.Warn("send reset", "error", err)
		}
	}

	sent, err := run(ctx, producer, next, *frames, *speed)
	if *closeAfter && !errors.Is(err, context.Canceled) {
		if err := sendCommand(producer, session.Command{Action: "close", SessionID: *sessionID}); err != nil {
			slog.Warn("send close", "error", err)
		}
	}
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		slog.Info("ingestor stopped", "frames_sent", sent)
	default:
		slog.Error("ingestor failed", "frames_sent", sent, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, producer *queue.Producer, next source, limit int, speed float64) (int, error) {
	sent := 0
	for limit == 0 || sent < limit {
		frame, gapMs, err := next()
		if err != nil {
			return sent, err
		}

		wait := time.Duration(gapMs / speed * float64(time.Millisecond))
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-time.After(wait):
		}

		if err := producer.PublishDetections(ctx, frame.SessionID, frame); err != nil {
			return sent, err
		}
		sent++
		slog.Debug("published detections",
			"session_id", frame.SessionID,
			"timestamp_ms", frame.TimestampMs,
			"players", len(frame.Players),
		)
	}
	return sent, nil
}

func sendCommand(producer *queue.Producer, cmd session.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	if err := producer.PublishControl(data); err != nil {
		return err
	}
	slog.Info("sent control command", "action", cmd.Action, "session_id", cmd.SessionID)
	return nil
}
