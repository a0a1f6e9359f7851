package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/facture-organizer/internal/bootstrap"
	"github.com/kirillkom/facture-organizer/internal/config"
	"github.com/kirillkom/facture-organizer/internal/observability/logging"
)

// The worker runs the organizer without the HTTP surface, for deployments
// where the API is started with ORGANIZER_ENABLED=false.
func main() {
	cfg := config.Load()
	cfg.OrganizerEnabled = true
	logger := logging.NewJSONLogger("facture-worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	logger.Info("worker_started", "staging_root", cfg.StagingRoot, "interval", cfg.OrganizerInterval.String())
	app.Organizer.Start(ctx)

	<-ctx.Done()
	if err := app.Organizer.Stop(); err != nil {
		logger.Warn("organizer_stop_failed", "error", err)
	}
}
