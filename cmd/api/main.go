package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/spotlight/internal/api"
	"github.com/your-org/spotlight/internal/api/handlers"
	"github.com/your-org/spotlight/internal/api/ws"
	"github.com/your-org/spotlight/internal/config"
	"github.com/your-org/spotlight/internal/observability"
	"github.com/your-org/spotlight/internal/queue"
	"github.com/your-org/spotlight/internal/session"
	"github.com/your-org/spotlight/internal/storage"
	"github.com/your-org/spotlight/internal/vision"
	"github.com/your-org/spotlight/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting spotlight API service", "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]handlers.Check{}
	var history handlers.HistoryStore
	opts := session.Options{
		Pipeline:   vision.NewPipeline(cfg.Spotlight),
		AutoSelect: cfg.Session.AutoSelectDefault(),
	}

	// Postgres is optional: without it sessions live in memory only.
	if cfg.Database.Enabled() {
		db, err := storage.NewPostgresStore(cfg.Database)
		if err != nil {
			slog.Error("connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			slog.Error("ensure schema", "error", err)
			os.Exit(1)
		}
		opts.Recorder = db
		history = db
		checks["postgres"] = db.Ping
	}

	// MinIO is optional: without it closed sessions are not archived.
	if cfg.MinIO.Enabled() {
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		opts.Archiver = minioStore
		checks["minio"] = minioStore.Ping
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)
	opts.Notifiers = append(opts.Notifiers, hub)

	var producer *queue.Producer
	if cfg.NATS.Enabled() {
		producer, err = queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
		}
		opts.Notifiers = append(opts.Notifiers, producer)
		checks["nats"] = func(context.Context) error { return producer.Ping() }
	}

	manager := session.NewManager(opts)
	go manager.RunRetention(ctx, cfg.Session.RetentionPeriod, cfg.Session.ArchiveRetention)

	if producer != nil {
		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Error("create detection consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		err = consumer.ConsumeDetections(ctx, cfg.NATS.ConsumerName, func(ctx context.Context, frame dto.DetectionFrame) error {
			_, err := manager.HandleFrame(frame)
			if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrClosed) {
				slog.Debug("detections for unknown session", "session_id", frame.SessionID)
				return nil
			}
			return err
		})
		if err != nil {
			slog.Warn("start detection consumer", "error", err)
		}

		err = consumer.SubscribeControl(ctx, func(ctx context.Context, data []byte) error {
			cmd, err := session.ParseCommand(data)
			if err != nil {
				return err
			}
			slog.Info("received command", "action", cmd.Action, "session_id", cmd.SessionID)
			return manager.HandleCommand(ctx, cmd)
		})
		if err != nil {
			slog.Warn("subscribe to control", "error", err)
		}

		go reportQueueDepth(ctx, producer)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:  cfg.Server.APIKey,
		Manager: manager,
		Hub:     hub,
		History: history,
		Checks:  checks,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	manager.CloseAll(shutdownCtx)
	cancel()

	slog.Info("API server stopped")
}

func reportQueueDepth(ctx context.Context, producer *queue.Producer) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := producer.QueueDepth(ctx)
			if err != nil {
				slog.Debug("queue depth", "error", err)
				continue
			}
			observability.QueueDepth.Set(float64(depth))
		}
	}
}
