package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

// ListParentFolders returns the period folders of business in directory order.
// A missing business directory yields an empty list.
func (s *Storage) ListParentFolders(ctx context.Context, business string) ([]domain.ParentFolder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !isPathElement(business) {
		return nil, nil
	}
	dir := filepath.Join(s.archiveRoot, business)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, storageErr("list parent folders", err)
	}

	folders := make([]domain.ParentFolder, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !domain.IsParentFolderName(entry.Name()) {
			continue
		}
		date, err := domain.ParseParentFolderDate(entry.Name())
		if err != nil {
			s.logger.Debug("parent_folder_unparsable", "business", business, "folder", entry.Name(), "error", err)
			continue
		}
		folders = append(folders, domain.ParentFolder{
			Business: business,
			Name:     entry.Name(),
			Date:     date,
			Path:     filepath.Join(dir, entry.Name()),
		})
	}
	return folders, nil
}

func (s *Storage) ReadParentDocument(ctx context.Context, folder domain.ParentFolder) (domain.ParentDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.ParentDocument{}, err
	}
	dir, err := s.parentPath(folder.Business, folder.Name)
	if err != nil {
		return domain.ParentDocument{}, err
	}
	return decodeParentDocument(filepath.Join(dir, documentFile))
}

// WriteWeekendBundle files a weekend invoice at <business>/<issued>/. Re-filing
// the same invoice replaces its files and keeps trips already filed beneath it.
func (s *Storage) WriteWeekendBundle(ctx context.Context, bundle domain.WeekendBundle) (domain.ParentFolder, domain.StoredBundle, error) {
	if err := ctx.Err(); err != nil {
		return domain.ParentFolder{}, domain.StoredBundle{}, err
	}
	if bundle.Facture.IssuedAt.IsZero() {
		return domain.ParentFolder{}, domain.StoredBundle{}, domain.WrapError(
			domain.ErrInvalidInput, "write weekend bundle", errors.New("datetime_emisor is required"))
	}
	business := bundle.Facture.Business()
	name := bundle.Facture.FolderName()
	dir, err := s.parentPath(business, name)
	if err != nil {
		return domain.ParentFolder{}, domain.StoredBundle{}, err
	}

	unlock := s.locks.Lock(parentLockKey(business, name))
	defer unlock()

	if err := s.clearBundleFiles(dir); err != nil {
		return domain.ParentFolder{}, domain.StoredBundle{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.ParentFolder{}, domain.StoredBundle{}, storageErr("create parent folder", err)
	}

	doc := weekendDocument{
		DataCrud:            bundle.RawText,
		DataFacture:         bundle.Facture,
		ProcessingTimestamp: s.now().Format(time.RFC3339),
		DateFolder:          name,
	}
	files := []string{documentFile}
	if err := writeJSONAtomic(filepath.Join(dir, documentFile), doc); err != nil {
		return domain.ParentFolder{}, domain.StoredBundle{}, storageErr("write weekend document", err)
	}
	originalName := assetBaseName + "_original." + imageExtension(bundle.Assets.Original)
	if err := os.WriteFile(filepath.Join(dir, originalName), bundle.Assets.Original, 0o644); err != nil {
		return domain.ParentFolder{}, domain.StoredBundle{}, storageErr("write original image", err)
	}
	files = append(files, originalName)
	if len(bundle.Assets.Enhanced) > 0 {
		enhancedName := assetBaseName + "_enhanced." + imageExtension(bundle.Assets.Enhanced)
		if err := os.WriteFile(filepath.Join(dir, enhancedName), bundle.Assets.Enhanced, 0o644); err != nil {
			return domain.ParentFolder{}, domain.StoredBundle{}, storageErr("write enhanced image", err)
		}
		files = append(files, enhancedName)
	}

	date, _ := domain.ParseParentFolderDate(name)
	parent := domain.ParentFolder{Business: business, Name: name, Date: date, Path: dir}
	stored := domain.StoredBundle{FolderPath: dir}
	for _, file := range files {
		stored.Files = append(stored.Files, filepath.Join(dir, file))
	}
	return parent, stored, nil
}

// clearBundleFiles removes the files of an existing weekend folder, leaving
// filed trip sub-folders in place.
func (s *Storage) clearBundleFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return storageErr("inspect parent folder", err)
	}
	if s.onConflict == RejectExisting {
		return domain.WrapError(domain.ErrFileConflict, "write weekend bundle", fmt.Errorf("%s already exists", dir))
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), assetBaseName) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return storageErr("replace weekend bundle", err)
		}
		removed++
	}
	if removed > 0 {
		s.logger.Warn("bundle_replaced", "path", dir, "files", removed)
	}
	return nil
}
