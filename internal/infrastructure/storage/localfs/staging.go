package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

const stagedBatchSize = 64

// ListStaged returns a lazy, single-use sequence over the staging area. Entries
// without a readable document are logged and skipped.
func (s *Storage) ListStaged(ctx context.Context) (iter.Seq[domain.TripRecord], error) {
	if _, err := os.Stat(s.stagingRoot); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return func(func(domain.TripRecord) bool) {}, nil
		}
		return nil, storageErr("list staged", err)
	}

	var consumed atomic.Bool
	return func(yield func(domain.TripRecord) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}
		dir, err := os.Open(s.stagingRoot)
		if err != nil {
			s.logger.Error("staging_open_failed", "path", s.stagingRoot, "error", err)
			return
		}
		defer dir.Close()

		for {
			if ctx.Err() != nil {
				return
			}
			entries, readErr := dir.ReadDir(stagedBatchSize)
			for _, entry := range entries {
				if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
					continue
				}
				record, ok := s.loadStaged(entry.Name())
				if !ok {
					continue
				}
				if !yield(record) {
					return
				}
			}
			if readErr != nil {
				if !errors.Is(readErr, io.EOF) {
					s.logger.Error("staging_read_failed", "path", s.stagingRoot, "error", readErr)
				}
				return
			}
		}
	}, nil
}

func (s *Storage) loadStaged(name string) (domain.TripRecord, bool) {
	folder := filepath.Join(s.stagingRoot, name)
	key, err := domain.ParseTripFolderName(name)
	if err != nil {
		s.logger.Warn("staged_trip_unrecognized", "folder", name, "error", err)
		return domain.TripRecord{}, false
	}

	var doc tripDocument
	if err := readJSON(filepath.Join(folder, documentFile), &doc); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			s.logger.Debug("staged_trip_incomplete", "folder", name)
		} else {
			s.logger.Warn("staged_trip_malformed", "folder", name, "error", err)
		}
		return domain.TripRecord{}, false
	}

	received := doc.DataFacture.ReceivedAt.Time
	if received.IsZero() {
		received = key.Date
	}
	return domain.TripRecord{
		Key:        key,
		Business:   doc.DataFacture.Business(),
		Code:       strings.TrimSpace(doc.DataFacture.Code),
		ReceivedAt: received,
		Path:       folder,
		Facture:    doc.DataFacture,
	}, true
}

// Relocate moves a staged bundle beneath dest. The existence check and the move
// run under the trip's key lock, so of two racing callers exactly one moves the
// bundle and the other observes domain.ErrNotFound.
func (s *Storage) Relocate(ctx context.Context, key domain.TripKey, dest domain.ParentFolder) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := key.FolderName()
	if !isPathElement(name) {
		return "", domain.WrapError(domain.ErrInvalidInput, "relocate trip", fmt.Errorf("invalid trip key %q", name))
	}
	parentDir, err := s.parentPath(dest.Business, dest.Name)
	if err != nil {
		return "", err
	}

	unlock := s.locks.Lock(tripLockKey(name))
	defer unlock()

	source := filepath.Join(s.stagingRoot, name)
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.WrapError(domain.ErrNotFound, "relocate trip", fmt.Errorf("staged trip %s", name))
		}
		return "", storageErr("relocate trip", err)
	}
	if info, err := os.Stat(parentDir); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", parentDir)
		}
		return "", domain.WrapError(domain.ErrStorageIO, "relocate trip", fmt.Errorf("destination unavailable: %w", err))
	}

	target := filepath.Join(parentDir, name)
	if err := s.resolveConflict(target); err != nil {
		return "", err
	}
	if err := moveDir(source, target); err != nil {
		return "", storageErr("relocate trip", err)
	}
	return target, nil
}

// WriteTripBundle stores a freshly ingested trip under parent, or in staging
// when parent is nil. Writing under a parent also removes a staged copy of the
// same key so the bundle exists in one place only.
func (s *Storage) WriteTripBundle(ctx context.Context, parent *domain.ParentFolder, bundle domain.TripBundle) (domain.StoredBundle, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoredBundle{}, err
	}
	key := bundle.Facture.TripKey()
	name := key.FolderName()
	if key.Code == "" || !isPathElement(name) {
		return domain.StoredBundle{}, domain.WrapError(domain.ErrInvalidInput, "write trip bundle", fmt.Errorf("invalid trip key %q", name))
	}

	root := s.stagingRoot
	if parent != nil {
		dir, err := s.parentPath(parent.Business, parent.Name)
		if err != nil {
			return domain.StoredBundle{}, err
		}
		root = dir
	}

	unlock := s.locks.Lock(tripLockKey(name))
	defer unlock()

	incoming := filepath.Join(root, incomingDirPrefix+uuid.NewString())
	if err := os.Mkdir(incoming, 0o755); err != nil {
		return domain.StoredBundle{}, storageErr("write trip bundle", err)
	}
	files, err := s.writeTripFiles(incoming, name, bundle)
	if err != nil {
		_ = os.RemoveAll(incoming)
		return domain.StoredBundle{}, err
	}

	target := filepath.Join(root, name)
	if err := s.resolveConflict(target); err != nil {
		_ = os.RemoveAll(incoming)
		return domain.StoredBundle{}, err
	}
	if err := os.Rename(incoming, target); err != nil {
		_ = os.RemoveAll(incoming)
		return domain.StoredBundle{}, storageErr("write trip bundle", err)
	}

	if parent != nil {
		staged := filepath.Join(s.stagingRoot, name)
		if _, err := os.Stat(staged); err == nil {
			if err := os.RemoveAll(staged); err != nil {
				s.logger.Warn("staged_duplicate_remove_failed", "trip_key", name, "error", err)
			} else {
				s.logger.Info("staged_duplicate_removed", "trip_key", name)
			}
		}
	}

	stored := domain.StoredBundle{FolderPath: target}
	for _, file := range files {
		stored.Files = append(stored.Files, filepath.Join(target, file))
	}
	return stored, nil
}

func (s *Storage) writeTripFiles(dir, folderName string, bundle domain.TripBundle) ([]string, error) {
	doc := tripDocument{
		Metadata: tripMetadata{
			ProcessedAt: s.now().Format(time.RFC3339),
			Type:        string(domain.InvoiceTrip),
			FolderName:  folderName,
		},
		DataFacture: bundle.Facture,
		DataCrud:    bundle.RawText,
	}
	if err := writeJSONAtomic(filepath.Join(dir, documentFile), doc); err != nil {
		return nil, storageErr("write trip document", err)
	}
	originalName := tripOriginalFile
	if isPDF(bundle.Assets.Original) {
		originalName = assetBaseName + "_original.pdf"
	}
	if err := os.WriteFile(filepath.Join(dir, originalName), bundle.Assets.Original, 0o644); err != nil {
		return nil, storageErr("write original image", err)
	}
	files := []string{documentFile, originalName}
	if len(bundle.Assets.Enhanced) > 0 {
		if err := os.WriteFile(filepath.Join(dir, tripEnhancedFile), bundle.Assets.Enhanced, 0o644); err != nil {
			return nil, storageErr("write enhanced image", err)
		}
		files = append(files, tripEnhancedFile)
	}
	return files, nil
}
