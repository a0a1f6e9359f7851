package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

// FactureIngestor is the inbound contract for scanned invoice uploads.
type FactureIngestor interface {
	Ingest(ctx context.Context, uploads []domain.Upload, opts domain.IngestOptions) (domain.IngestReport, error)
}

// TripReconciler matches staged trips to weekend invoices and files them.
type TripReconciler interface {
	ReconcileOne(ctx context.Context, trip domain.TripRecord) domain.ReconcileOutcome
	ReconcileAll(ctx context.Context) (domain.ReconcileSummary, error)
	MatchOrStage(ctx context.Context, bundle domain.TripBundle) (domain.FilingResult, error)
}

// OrganizerService is the control surface of the background organizer.
type OrganizerService interface {
	TriggerNow(ctx context.Context) (domain.ReconcileSummary, error)
	Status() domain.SchedulerStatus
}

// ArchiveBrowser is the inbound read model over the archive.
type ArchiveBrowser interface {
	ListBusinesses(ctx context.Context) ([]domain.BusinessDirectory, error)
	FolderContents(ctx context.Context, business, folder string) (domain.FolderContents, error)
	SearchByDateRange(ctx context.Context, business string, from, to time.Time) ([]domain.FolderContents, error)
	Delete(ctx context.Context, business, folder string) error
	Export(ctx context.Context, business string, from, to time.Time) ([]byte, error)
}

// FactureCorrector applies manual corrections to stored invoices.
type FactureCorrector interface {
	Correct(ctx context.Context, ref domain.BundleRef, kind domain.InvoiceType, data json.RawMessage) (domain.CorrectionResult, error)
}
