package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
	"github.com/kirillkom/facture-organizer/internal/core/ports"
)

type ArchiveUseCase struct {
	store    ports.ArchiveStore
	exporter ports.ArchiveExporter
	logger   *slog.Logger
}

func NewArchiveUseCase(store ports.ArchiveStore, exporter ports.ArchiveExporter, logger *slog.Logger) *ArchiveUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveUseCase{store: store, exporter: exporter, logger: logger.With("component", "archive")}
}

func (uc *ArchiveUseCase) ListBusinesses(ctx context.Context) ([]domain.BusinessDirectory, error) {
	return uc.store.ListBusinesses(ctx)
}

func (uc *ArchiveUseCase) FolderContents(ctx context.Context, business, folder string) (domain.FolderContents, error) {
	return uc.store.FolderContents(ctx, business, folder)
}

// SearchByDateRange lists the period folders of business issued within
// [from, to], newest first. A zero bound is open.
func (uc *ArchiveUseCase) SearchByDateRange(ctx context.Context, business string, from, to time.Time) ([]domain.FolderContents, error) {
	folders, err := uc.foldersInRange(ctx, business, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FolderContents, 0, len(folders))
	for _, folder := range folders {
		contents, err := uc.store.FolderContents(ctx, business, folder.Name)
		if err != nil {
			if domain.IsKind(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, contents)
	}
	return out, nil
}

func (uc *ArchiveUseCase) Delete(ctx context.Context, business, folder string) error {
	return uc.store.DeleteParentFolder(ctx, business, folder)
}

// Export renders every weekend invoice in range together with its filed trips.
func (uc *ArchiveUseCase) Export(ctx context.Context, business string, from, to time.Time) ([]byte, error) {
	if uc.exporter == nil {
		return nil, errors.New("archive exporter is not configured")
	}
	folders, err := uc.foldersInRange(ctx, business, from, to)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.ArchiveEntry, 0, len(folders))
	for _, folder := range folders {
		weekend, err := uc.store.ReadWeekend(ctx, business, folder.Name)
		if err != nil {
			uc.logger.Warn("export_weekend_unreadable", "business", business, "folder", folder.Name, "error", err)
			continue
		}
		trips, err := uc.store.ListFiledTrips(ctx, business, folder.Name)
		if err != nil {
			uc.logger.Warn("export_trips_unreadable", "business", business, "folder", folder.Name, "error", err)
		}
		entries = append(entries, domain.ArchiveEntry{Folder: folder.Name, Weekend: weekend, Trips: trips})
	}
	data, err := uc.exporter.Export(business, entries)
	if err != nil {
		return nil, fmt.Errorf("export archive: %w", err)
	}
	return data, nil
}

func (uc *ArchiveUseCase) foldersInRange(ctx context.Context, business string, from, to time.Time) ([]domain.DateFolder, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search archive", errors.New("range end precedes start"))
	}
	businesses, err := uc.store.ListBusinesses(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(businesses, func(b domain.BusinessDirectory) bool { return b.Name == business })
	if idx < 0 {
		return nil, nil
	}
	var out []domain.DateFolder
	for _, folder := range businesses[idx].DateFolders {
		if !from.IsZero() && folder.IssuedAt.Before(from) {
			continue
		}
		if !to.IsZero() && folder.IssuedAt.After(to) {
			continue
		}
		out = append(out, folder)
	}
	return out, nil
}
