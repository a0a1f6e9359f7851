package ports

import (
	"context"
	"iter"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

// RecordStore is the only component allowed to mutate the archive and staging trees.
type RecordStore interface {
	// ListStaged enumerates the staging area lazily. The sequence is single use.
	ListStaged(ctx context.Context) (iter.Seq[domain.TripRecord], error)
	ListParentFolders(ctx context.Context, business string) ([]domain.ParentFolder, error)
	ReadParentDocument(ctx context.Context, folder domain.ParentFolder) (domain.ParentDocument, error)
	// Relocate moves a staged bundle under dest. It returns domain.ErrNotFound when
	// the staged bundle no longer exists.
	Relocate(ctx context.Context, key domain.TripKey, dest domain.ParentFolder) (string, error)
	// WriteTripBundle writes under parent, or into staging when parent is nil.
	WriteTripBundle(ctx context.Context, parent *domain.ParentFolder, bundle domain.TripBundle) (domain.StoredBundle, error)
	WriteWeekendBundle(ctx context.Context, bundle domain.WeekendBundle) (domain.ParentFolder, domain.StoredBundle, error)
}

// ArchiveStore serves read, correction and delete access to filed bundles.
type ArchiveStore interface {
	ListBusinesses(ctx context.Context) ([]domain.BusinessDirectory, error)
	FolderContents(ctx context.Context, business, folder string) (domain.FolderContents, error)
	ReadWeekend(ctx context.Context, business, folder string) (domain.FactureWeekend, error)
	ListFiledTrips(ctx context.Context, business, folder string) ([]domain.FactureTrip, error)
	DeleteParentFolder(ctx context.Context, business, folder string) error
	CorrectBundle(ctx context.Context, ref domain.BundleRef, newFolderName string, facture any) (domain.BundleRef, error)
}

// TextRecognizer runs optical character recognition over an image.
type TextRecognizer interface {
	Recognize(ctx context.Context, image []byte, filename string) (domain.RecognizedText, error)
}

// PDFTextReader returns the embedded text layer of a PDF, or "" when it has none.
type PDFTextReader interface {
	ReadText(ctx context.Context, data []byte) (string, error)
}

// ImageEnhancer prepares a scan for recognition.
type ImageEnhancer interface {
	Enhance(ctx context.Context, image []byte) ([]byte, error)
}

// FactureExtractor turns recognized text into typed invoices.
type FactureExtractor interface {
	ExtractTrip(ctx context.Context, text string) (domain.FactureTrip, error)
	ExtractWeekend(ctx context.Context, text string) (domain.FactureWeekend, error)
}

// EventPublisher announces filing and relocation events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.FactureEvent) error
}

// OrganizerMetrics records reconciliation activity.
type OrganizerMetrics interface {
	ObserveOutcome(kind domain.OutcomeKind)
	ObservePass(summary domain.ReconcileSummary, duration time.Duration, err error)
}

// ArchiveExporter renders archive entries as a downloadable document.
type ArchiveExporter interface {
	Export(business string, entries []domain.ArchiveEntry) ([]byte, error)
}
