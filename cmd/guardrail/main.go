package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/pressly/goose/v3"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/guardrail/internal/control"
	"github.com/vietddude/guardrail/internal/core/config"
	"github.com/vietddude/guardrail/internal/infra/events"
	redisclient "github.com/vietddude/guardrail/internal/infra/redis"
	"github.com/vietddude/guardrail/internal/infra/storage"
	"github.com/vietddude/guardrail/internal/infra/storage/memory"
	"github.com/vietddude/guardrail/internal/infra/storage/postgres"
)

func main() {
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Fall back to default logger for config load errors
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(
		&tint.Options{
			Level:      slogLevel,
			TimeFormat: time.RFC3339,
		})
	slog.Info("Logger initialized", "level", slogLevel.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	sink, err := buildSink(cfg)
	if err != nil {
		slog.Error("Failed to initialize event sink", "sink", cfg.Events.Sink, "error", err)
		os.Exit(1)
	}

	policy, err := cfg.Retry.ResolvePolicy()
	if err != nil {
		slog.Error("Invalid retry configuration", "error", err)
		os.Exit(1)
	}

	engine := control.NewEngine(store, quartz.NewReal(), sink, control.Options{
		Policy:    policy,
		Breaker:   cfg.Breaker,
		Threshold: cfg.Threshold,
	})
	if err := engine.Init(ctx); err != nil {
		slog.Error("Failed to initialize engine", "error", err)
		os.Exit(1)
	}

	server := control.NewServer(engine, cfg.Server.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Guardrail listening", "port", cfg.Server.Port)
		errChan <- server.Start()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
	case err := <-errChan:
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Guardrail stopped gracefully")
}

// buildStore selects the state backend. Postgres gets its schema migrated
// before use.
func buildStore(ctx context.Context, cfg *config.AppConfig) (storage.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		return memory.NewMemoryStore(), func() {}, nil

	case "redis":
		client, err := redisclient.NewClient(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Storage.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := goose.SetDialect("postgres"); err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		return postgres.NewStateStore(db), func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildSink(cfg *config.AppConfig) (events.Sink, error) {
	switch cfg.Events.Sink {
	case "log":
		return events.NewLogSink(slog.Default()), nil
	case "redis":
		client, err := redisclient.NewClient(cfg.Storage.Redis)
		if err != nil {
			return nil, err
		}
		return redisclient.NewSink(client, cfg.Events.Channel), nil
	case "none":
		return events.NopSink{}, nil
	default:
		return nil, fmt.Errorf("unknown event sink %q", cfg.Events.Sink)
	}
}
