package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/vigil/internal/api"
	"github.com/MikeSquared-Agency/vigil/internal/audit"
	"github.com/MikeSquared-Agency/vigil/internal/config"
	"github.com/MikeSquared-Agency/vigil/internal/ingest"
	"github.com/MikeSquared-Agency/vigil/internal/lexicon"
	"github.com/MikeSquared-Agency/vigil/internal/pipeline"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("vigil starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Lexicon
	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		slog.Error("failed to load lexicon", "path", cfg.LexiconPath, "error", err)
		os.Exit(1)
	}
	if cfg.LexiconPath != "" {
		slog.Info("lexicon loaded", "path", cfg.LexiconPath)
	}

	// Audit trail (optional — falls back to in-memory when no database
	// is configured)
	var recorder audit.Recorder
	if cfg.DatabaseURL != "" {
		store, err := audit.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		recorder = store
		slog.Info("database connected")
	} else {
		recorder = audit.NewMemoryRecorder(0)
		slog.Warn("DATABASE_URL not set — audit trail is in-memory only")
	}

	// Pipeline
	pipe, err := pipeline.New(lex, cfg.ClusterWindow, recorder, slog.Default())
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	// NATS
	natsClient, err := ingest.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	consumer := ingest.NewConsumer(natsClient, pipe, slog.Default())
	if err := consumer.Start(ctx); err != nil {
		slog.Error("failed to subscribe to batch events", "error", err)
		os.Exit(1)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, pipe, recorder)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := natsClient.Publish("ops.agent.vigil.registered", map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
		"mode":      "advisory",
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("vigil ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("vigil stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
