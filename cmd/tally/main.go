package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tally/internal/amqp"
	"tally/internal/config"
	apphttp "tally/internal/http"
	"tally/internal/ledger"
	"tally/internal/ledger/memory"
	applog "tally/internal/log"
	"tally/internal/reports"
	"tally/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var reader ledger.Reader
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		reader = repo
		logger.Info("Initialized sqlite backend", "path", cfg.SQLiteDBPath)
	default:
		reader = memory.New(nil, nil, nil, nil)
		logger.Info("Initialized memory backend")
	}

	engine := reports.NewEngine(reader)
	srv := apphttp.NewServer(":"+cfg.Port, engine, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// When AMQP is configured, subscribe on a dedicated queue bound to the
	// worker's routing key and drop the report cache on every ledger update.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClientWithBinding(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue+".api", cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Cache invalidation disabled - AMQP unavailable", "error", err)
		} else {
			defer amqpClient.Close()
			go func() {
				err := amqpClient.ConsumeLedgerUpdates(ctx, func(_ context.Context, msg *amqp.LedgerUpdatedMessage) error {
					srv.InvalidateReports()
					logger.Info("Report cache invalidated", "account_id", msg.AccountID)
					return nil
				})
				if err != nil && err != context.Canceled {
					logger.Error("Cache invalidation consumer stopped", "error", err)
				}
			}()
		}
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 20 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting tally server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
