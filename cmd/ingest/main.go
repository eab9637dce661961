package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/internal/app"
	"github.com/pricelens/backend/internal/infrastructure/logging"
)

// ingest runs one refresh of every enabled retailer and exits non-zero if any failed
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}

	refreshErr := application.RefreshAll(ctx, logger)
	if err := application.Close(); err != nil {
		logger.WithError(err).Warn("Failed to release resources")
	}
	if refreshErr != nil {
		os.Exit(1)
	}
	logger.Info("Ingest finished")
}
