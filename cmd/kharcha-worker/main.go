package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"kharcha/internal/amqp"
	"kharcha/internal/config"
	"kharcha/internal/export"
	"kharcha/internal/export/csvfile"
	"kharcha/internal/export/memory"
	"kharcha/internal/export/sheets"
	"kharcha/internal/log"
	"kharcha/internal/storage"
	"kharcha/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentWorker})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	target, err := buildAppender(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize export backend", log.FieldError, err,
			"backend", cfg.ExportBackend)
		os.Exit(1)
	}
	logger.Info("export backend ready", "backend", cfg.ExportBackend)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("failed to connect to AMQP", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.NewExportWorker(repo, target, cfg.ExportBatch, logger)

	if err := w.StartupCheck(ctx); err != nil {
		// The consume loop and sweep still run; the backlog is retried.
		logger.Error("startup check failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeExpenseCreated(gctx, w.HandleCreated)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.ExportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if _, err := w.SweepPending(gctx); err != nil {
					logger.Error("periodic sweep failed", log.FieldError, err)
				}
			}
		}
	})

	logger.Info("kharcha-worker running",
		"queue", cfg.AMQPQueue,
		"sweep_interval", cfg.ExportInterval.String())

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("worker stopped gracefully")
}

func buildAppender(ctx context.Context, cfg *config.Config) (export.Appender, error) {
	switch cfg.ExportBackend {
	case "sheets":
		return sheets.NewFromEnv(ctx)
	case "none":
		return memory.New(), nil
	default:
		return csvfile.New(cfg.CSVExportPath)
	}
}
