package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kharcha/internal/amqp"
	"kharcha/internal/config"
	apphttp "kharcha/internal/http"
	"kharcha/internal/log"
	"kharcha/internal/services"
	"kharcha/internal/storage"
)

func main() {
	// .env is for local development; absent in containers.
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentApp})
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

	// Events are optional for the API; the worker's sweep covers a
	// missing broker.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without events", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	}

	svc := services.NewExpenseService(repo, publisher, logger)
	srv := apphttp.NewServer(":"+cfg.Port, svc, cfg.RateLimitPerMinute, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("starting kharcha server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", log.FieldError, err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped gracefully")
}
