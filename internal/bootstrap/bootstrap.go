package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/facture-organizer/internal/config"
	"github.com/kirillkom/facture-organizer/internal/core/ports"
	"github.com/kirillkom/facture-organizer/internal/core/usecase"
	"github.com/kirillkom/facture-organizer/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/facture-organizer/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/facture-organizer/internal/infrastructure/imaging"
	"github.com/kirillkom/facture-organizer/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/facture-organizer/internal/infrastructure/ocr/ocrspace"
	"github.com/kirillkom/facture-organizer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/facture-organizer/internal/infrastructure/resilience"
	"github.com/kirillkom/facture-organizer/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/facture-organizer/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Store       *localfs.Storage
	HTTPMetrics *metrics.HTTPServerMetrics

	IngestUC    ports.FactureIngestor
	CorrectUC   ports.FactureCorrector
	ArchiveUC   ports.ArchiveBrowser
	ReconcileUC *usecase.ReconcileUseCase
	// Organizer is nil when the background organizer is disabled.
	Organizer *usecase.OrganizerScheduler

	closeFn func()
}

func New(_ context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	onConflict := localfs.ReplaceExisting
	if cfg.OrganizerRejectConflicts {
		onConflict = localfs.RejectExisting
	}
	store, err := localfs.NewWithOptions(cfg.ArchiveRoot, cfg.StagingRoot, localfs.Options{
		OnConflict: onConflict,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init record store: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg), logger)

	var publisher ports.EventPublisher
	closeFn := func() {}
	if cfg.NATSURL != "" {
		natsPublisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		publisher = natsPublisher
		closeFn = natsPublisher.Close
	} else {
		logger.Info("event_publishing_disabled")
	}

	httpMetrics := metrics.NewHTTPServerMetrics("facture-api")
	organizerMetrics := metrics.NewOrganizerMetrics("facture-api", httpMetrics.Registry())

	recognizer := ocrspace.New(cfg.OCRSpaceURL, cfg.OCRSpaceAPIKey,
		ocrspace.WithLanguage(cfg.OCRSpaceLanguage),
		ocrspace.WithExecutor(executor),
	)
	extractor := ollama.NewExtractor(ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.WithExecutor(executor)))
	enhancer := imaging.NewEnhancer(imaging.Options{MaxWidth: cfg.EnhanceMaxWidth})

	reconcileUC := usecase.NewReconcileUseCase(store, publisher, organizerMetrics, logger)
	ingestUC := usecase.NewIngestFactureUseCase(
		store,
		reconcileUC,
		recognizer,
		pdftext.NewExtractor(),
		enhancer,
		extractor,
		publisher,
		usecase.IngestConfig{
			MaxUploadBytes: cfg.UploadMaxBytes,
			Parallelism:    cfg.IngestParallelism,
			Logger:         logger,
		},
	)

	var organizer *usecase.OrganizerScheduler
	if cfg.OrganizerEnabled {
		organizer = usecase.NewOrganizerScheduler(reconcileUC, usecase.OrganizerOptions{
			Interval:     cfg.OrganizerInterval,
			FaultBackoff: cfg.OrganizerFaultBackoff,
			StopTimeout:  cfg.OrganizerStopTimeout,
			Logger:       logger,
		})
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		HTTPMetrics: httpMetrics,
		IngestUC:    ingestUC,
		CorrectUC:   usecase.NewCorrectFactureUseCase(store, logger),
		ArchiveUC:   usecase.NewArchiveUseCase(store, xlsx.NewExporter(), logger),
		ReconcileUC: reconcileUC,
		Organizer:   organizer,
		closeFn:     closeFn,
	}, nil
}

// OrganizerService returns the organizer as an interface value that is nil
// when the organizer is disabled.
func (a *App) OrganizerService() ports.OrganizerService {
	if a.Organizer == nil {
		return nil
	}
	return a.Organizer
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	if cfg.ResilienceRetryMaxAttempts > 0 {
		rc.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	}
	if cfg.ResilienceRetryInitialBackoff > 0 {
		rc.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	}
	if cfg.ResilienceRetryMaxBackoff > 0 {
		rc.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	}
	if cfg.ResilienceBreakerOpenTimeout > 0 {
		rc.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	}
	rc.BreakerEnabled = cfg.ResilienceBreakerEnabled
	return rc
}
