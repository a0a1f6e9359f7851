package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
	"github.com/kirillkom/facture-organizer/internal/core/ports"
)

// ReconcileUseCase files staged trips under the weekend invoices that bill them.
// It is safe for concurrent use; per-key exclusion lives in the record store.
type ReconcileUseCase struct {
	store     ports.RecordStore
	matcher   *Matcher
	publisher ports.EventPublisher
	metrics   ports.OrganizerMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewReconcileUseCase(
	store ports.RecordStore,
	publisher ports.EventPublisher,
	metrics ports.OrganizerMetrics,
	logger *slog.Logger,
) *ReconcileUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reconciler")
	return &ReconcileUseCase{
		store:     store,
		matcher:   NewMatcher(logger),
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// ReconcileOne never returns an error; every failure is folded into the outcome.
func (uc *ReconcileUseCase) ReconcileOne(ctx context.Context, trip domain.TripRecord) (outcome domain.ReconcileOutcome) {
	outcome.Key = trip.Key
	defer func() {
		if recovered := recover(); recovered != nil {
			err := domain.WrapError(domain.ErrSchedulerFault, "reconcile trip", fmt.Errorf("panic: %v", recovered))
			outcome = failedOutcome(trip.Key, err, outcome.InspectionErrors)
			uc.logger.Error("trip_reconcile_panic", "trip_key", trip.Key.String(), "error", err)
		}
		if uc.metrics != nil {
			uc.metrics.ObserveOutcome(outcome.Kind)
		}
	}()

	if trip.Code == "" {
		uc.logger.Warn("trip_skipped", "trip_key", trip.Key.String(), "reason", "missing code")
		outcome.Kind = domain.OutcomeSkipped
		return outcome
	}

	candidates, err := uc.store.ListParentFolders(ctx, trip.Business)
	if err != nil {
		uc.logger.Error("trip_reconcile_failed", "trip_key", trip.Key.String(), "stage", "list_parents", "error", err)
		return failedOutcome(trip.Key, err, 0)
	}
	match := uc.matcher.Match(trip, candidates, func(folder domain.ParentFolder) (domain.ParentDocument, error) {
		return uc.store.ReadParentDocument(ctx, folder)
	})
	outcome.InspectionErrors = match.InspectionErrors
	if !match.Found() {
		uc.logger.Debug("trip_pending", "trip_key", trip.Key.String(), "business", trip.Business)
		outcome.Kind = domain.OutcomePending
		return outcome
	}

	destination, err := uc.store.Relocate(ctx, trip.Key, *match.Parent)
	switch {
	case domain.IsKind(err, domain.ErrNotFound):
		uc.logger.Info("trip_already_handled", "trip_key", trip.Key.String())
		outcome.Kind = domain.OutcomeAlreadyHandled
		outcome.Parent = match.Parent
		return outcome
	case err != nil:
		uc.logger.Error("trip_reconcile_failed", "trip_key", trip.Key.String(), "stage", "relocate", "error", err)
		return failedOutcome(trip.Key, err, match.InspectionErrors)
	}

	uc.logger.Info("trip_relocated",
		"trip_key", trip.Key.String(),
		"business", match.Parent.Business,
		"parent", match.Parent.Name,
	)
	uc.publish(ctx, domain.EventTripRelocated, match.Parent.Business, trip.Key.FolderName(), match.Parent.Name)

	outcome.Kind = domain.OutcomeRelocated
	outcome.Parent = match.Parent
	outcome.Destination = destination
	return outcome
}

// ReconcileAll runs ReconcileOne over every staged trip. Only a failure to list
// the staging area or a cancelled context is returned as an error.
func (uc *ReconcileUseCase) ReconcileAll(ctx context.Context) (domain.ReconcileSummary, error) {
	started := uc.now()
	var summary domain.ReconcileSummary

	finish := func(err error) (domain.ReconcileSummary, error) {
		summary.Duration = uc.now().Sub(started)
		if uc.metrics != nil {
			uc.metrics.ObservePass(summary, summary.Duration, err)
		}
		return summary, err
	}

	staged, err := uc.store.ListStaged(ctx)
	if err != nil {
		return finish(fmt.Errorf("list staged trips: %w", err))
	}
	for trip := range staged {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		summary.Add(uc.ReconcileOne(ctx, trip))
	}

	uc.logger.Info("organizer_pass_completed",
		"moved", summary.Moved,
		"errors", summary.Errors,
		"pending", summary.Pending,
		"already_handled", summary.AlreadyHandled,
		"skipped", summary.Skipped,
		"total", summary.Total,
	)
	return finish(nil)
}

// MatchOrStage files a freshly ingested trip under its weekend invoice when one
// already exists, and stages it otherwise.
func (uc *ReconcileUseCase) MatchOrStage(ctx context.Context, bundle domain.TripBundle) (domain.FilingResult, error) {
	if err := bundle.Facture.Validate(); err != nil {
		return domain.FilingResult{}, err
	}
	trip := domain.TripRecord{
		Key:        bundle.Facture.TripKey(),
		Business:   bundle.Facture.Business(),
		Code:       bundle.Facture.TripKey().Code,
		ReceivedAt: bundle.Facture.ReceivedAt.Time,
		Facture:    bundle.Facture,
	}

	candidates, err := uc.store.ListParentFolders(ctx, trip.Business)
	if err != nil {
		return domain.FilingResult{}, fmt.Errorf("list parent folders: %w", err)
	}
	match := uc.matcher.Match(trip, candidates, func(folder domain.ParentFolder) (domain.ParentDocument, error) {
		return uc.store.ReadParentDocument(ctx, folder)
	})

	if match.Found() {
		stored, err := uc.store.WriteTripBundle(ctx, match.Parent, bundle)
		if err == nil {
			uc.logger.Info("trip_filed", "trip_key", trip.Key.String(), "business", match.Parent.Business, "parent", match.Parent.Name)
			uc.publish(ctx, domain.EventTripFiled, match.Parent.Business, trip.Key.FolderName(), match.Parent.Name)
			return domain.FilingResult{Location: domain.LocationWeekendFolder, Parent: match.Parent, Bundle: stored}, nil
		}
		if !domain.IsKind(err, domain.ErrNotFound) {
			return domain.FilingResult{}, fmt.Errorf("write trip bundle: %w", err)
		}
		// The parent vanished between matching and writing; stage instead.
		uc.logger.Warn("trip_parent_vanished", "trip_key", trip.Key.String(), "parent", match.Parent.Name, "error", err)
	}

	stored, err := uc.store.WriteTripBundle(ctx, nil, bundle)
	if err != nil {
		return domain.FilingResult{}, fmt.Errorf("stage trip bundle: %w", err)
	}
	uc.logger.Info("trip_staged", "trip_key", trip.Key.String(), "business", trip.Business)
	uc.publish(ctx, domain.EventTripStaged, trip.Business, filepath.Base(stored.FolderPath), "")
	return domain.FilingResult{Location: domain.LocationStaging, Bundle: stored}, nil
}

func (uc *ReconcileUseCase) publish(ctx context.Context, eventType domain.EventType, business, folder, parent string) {
	publishEvent(ctx, uc.publisher, uc.logger, domain.FactureEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Business:   business,
		Folder:     folder,
		Parent:     parent,
		OccurredAt: uc.now().UTC(),
	})
}

// publishEvent is best effort: filing has already happened when it runs.
func publishEvent(ctx context.Context, publisher ports.EventPublisher, logger *slog.Logger, event domain.FactureEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("event_publish_failed", "event_type", string(event.Type), "folder", event.Folder, "error", err)
	}
}

func failedOutcome(key domain.TripKey, err error, inspectionErrors int) domain.ReconcileOutcome {
	kind := domain.KindOf(err)
	if kind == nil {
		kind = domain.ErrStorageIO
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			kind = domain.ErrTemporary
		}
	}
	return domain.ReconcileOutcome{
		Kind:             domain.OutcomeFailed,
		Key:              key,
		FailureKind:      kind,
		Err:              err,
		InspectionErrors: inspectionErrors,
	}
}
