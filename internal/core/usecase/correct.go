package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
	"github.com/kirillkom/facture-organizer/internal/core/ports"
)

// CorrectFactureUseCase replaces the extracted data of a stored bundle with
// manually corrected data and renames the folder to match it.
type CorrectFactureUseCase struct {
	store  ports.ArchiveStore
	logger *slog.Logger
	now    func() time.Time
}

func NewCorrectFactureUseCase(store ports.ArchiveStore, logger *slog.Logger) *CorrectFactureUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorrectFactureUseCase{store: store, logger: logger.With("component", "corrector"), now: time.Now}
}

func (uc *CorrectFactureUseCase) Correct(ctx context.Context, ref domain.BundleRef, kind domain.InvoiceType, data json.RawMessage) (domain.CorrectionResult, error) {
	ref, err := ref.Clean()
	if err != nil {
		return domain.CorrectionResult{}, err
	}
	kind, ok := domain.ParseInvoiceType(string(kind))
	if !ok {
		return domain.CorrectionResult{}, domain.WrapError(domain.ErrUnsupportedInvoice, "correct facture",
			fmt.Errorf("model_type must be %s or %s", domain.InvoiceWeekend, domain.InvoiceTrip))
	}

	var (
		facture    any
		folderName string
	)
	switch kind {
	case domain.InvoiceWeekend:
		var weekend domain.FactureWeekend
		if err := decodeCorrection(data, &weekend); err != nil {
			return domain.CorrectionResult{}, err
		}
		if err := weekend.Validate(); err != nil {
			return domain.CorrectionResult{}, err
		}
		facture, folderName = weekend, weekend.FolderName()
	case domain.InvoiceTrip:
		var trip domain.FactureTrip
		if err := decodeCorrection(data, &trip); err != nil {
			return domain.CorrectionResult{}, err
		}
		if err := trip.Validate(); err != nil {
			return domain.CorrectionResult{}, err
		}
		facture, folderName = trip, trip.TripKey().FolderName()
	}

	updated, err := uc.store.CorrectBundle(ctx, ref, folderName, facture)
	if err != nil {
		return domain.CorrectionResult{}, fmt.Errorf("correct bundle: %w", err)
	}
	encoded, err := json.Marshal(facture)
	if err != nil {
		return domain.CorrectionResult{}, fmt.Errorf("encode corrected facture: %w", err)
	}

	result := domain.CorrectionResult{
		Ref:         updated,
		Kind:        kind,
		Renamed:     updated.Path != ref.Path,
		FolderName:  path.Base(updated.Path),
		CorrectedAt: uc.now().UTC(),
		FactureData: encoded,
	}
	uc.logger.Info("facture_corrected",
		"area", string(updated.Area),
		"path", updated.Path,
		"model_type", string(kind),
		"renamed", result.Renamed,
	)
	return result, nil
}

func decodeCorrection(data json.RawMessage, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "decode corrected data", errors.New("corrected_data is empty"))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode corrected data", err)
	}
	return nil
}
