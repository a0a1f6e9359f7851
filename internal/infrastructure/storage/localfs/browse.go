package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

// ListBusinesses returns every business directory with its period folders,
// newest first.
func (s *Storage) ListBusinesses(ctx context.Context) ([]domain.BusinessDirectory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.archiveRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, storageErr("list businesses", err)
	}

	out := make([]domain.BusinessDirectory, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(s.archiveRoot, entry.Name())
		children, err := os.ReadDir(dir)
		if err != nil {
			s.logger.Warn("business_unreadable", "business", entry.Name(), "error", err)
			continue
		}
		business := domain.BusinessDirectory{Name: entry.Name(), Path: dir, DateFolders: []domain.DateFolder{}}
		for _, child := range children {
			if !child.IsDir() || !domain.IsParentFolderName(child.Name()) {
				continue
			}
			issued, _ := domain.ParseParentFolderTime(child.Name())
			business.DateFolders = append(business.DateFolders, domain.DateFolder{
				Name:     child.Name(),
				Path:     filepath.Join(dir, child.Name()),
				IssuedAt: issued,
			})
		}
		slices.SortFunc(business.DateFolders, func(a, b domain.DateFolder) int {
			return strings.Compare(b.Name, a.Name)
		})
		out = append(out, business)
	}
	return out, nil
}

func (s *Storage) FolderContents(ctx context.Context, business, folder string) (domain.FolderContents, error) {
	if err := ctx.Err(); err != nil {
		return domain.FolderContents{}, err
	}
	dir, err := s.parentPath(business, folder)
	if err != nil {
		return domain.FolderContents{}, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return domain.FolderContents{}, storageErr("folder contents", err)
	}

	contents := domain.FolderContents{Business: business, Folder: folder, Path: dir, Files: []domain.FileInfo{}}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		contents.Files = append(contents.Files, domain.FileInfo{
			Name:      entry.Name(),
			Path:      filepath.Join(dir, entry.Name()),
			Size:      info.Size(),
			Extension: strings.ToLower(filepath.Ext(entry.Name())),
		})
	}
	return contents, nil
}

func (s *Storage) ReadWeekend(ctx context.Context, business, folder string) (domain.FactureWeekend, error) {
	if err := ctx.Err(); err != nil {
		return domain.FactureWeekend{}, err
	}
	dir, err := s.parentPath(business, folder)
	if err != nil {
		return domain.FactureWeekend{}, err
	}
	var doc weekendDocument
	if err := readJSON(filepath.Join(dir, documentFile), &doc); err != nil {
		return domain.FactureWeekend{}, err
	}
	return doc.DataFacture, nil
}

// ListFiledTrips reads the trips filed beneath a period folder. Unreadable trip
// documents are logged and left out.
func (s *Storage) ListFiledTrips(ctx context.Context, business, folder string) ([]domain.FactureTrip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.parentPath(business, folder)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, storageErr("list filed trips", err)
	}
	var trips []domain.FactureTrip
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		var doc tripDocument
		if err := readJSON(filepath.Join(dir, entry.Name(), documentFile), &doc); err != nil {
			s.logger.Warn("filed_trip_unreadable", "business", business, "folder", folder, "trip", entry.Name(), "error", err)
			continue
		}
		trips = append(trips, doc.DataFacture)
	}
	return trips, nil
}

// DeleteParentFolder removes a period folder with every trip filed beneath it.
// The business directory goes too once it is empty.
func (s *Storage) DeleteParentFolder(ctx context.Context, business, folder string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.parentPath(business, folder)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(parentLockKey(business, folder))
	defer unlock()

	if _, err := os.Stat(dir); err != nil {
		return storageErr("delete parent folder", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return storageErr("delete parent folder", err)
	}
	s.logger.Info("parent_folder_deleted", "business", business, "folder", folder)

	businessDir := filepath.Dir(dir)
	if rest, err := os.ReadDir(businessDir); err == nil && len(rest) == 0 {
		_ = os.Remove(businessDir)
	}
	return nil
}

// CorrectBundle rewrites data_facture of a stored bundle and marks it corrected.
// When newFolderName differs from the current name and is free, the folder is
// renamed; an occupied name leaves the folder where it is.
func (s *Storage) CorrectBundle(ctx context.Context, ref domain.BundleRef, newFolderName string, facture any) (domain.BundleRef, error) {
	if err := ctx.Err(); err != nil {
		return domain.BundleRef{}, err
	}
	ref, err := ref.Clean()
	if err != nil {
		return domain.BundleRef{}, err
	}
	root := s.archiveRoot
	if ref.Area == domain.AreaStaging {
		root = s.stagingRoot
	}
	dir := filepath.Join(root, filepath.FromSlash(ref.Path))

	current := filepath.Base(dir)
	rename := newFolderName != "" && newFolderName != current
	if rename && !isPathElement(newFolderName) {
		return domain.BundleRef{}, domain.WrapError(domain.ErrInvalidInput, "correct bundle", fmt.Errorf("invalid folder name %q", newFolderName))
	}
	keys := []string{s.bundleLockKey(ref, current)}
	if rename {
		keys = append(keys, s.bundleLockKey(ref, newFolderName))
	}
	unlock := s.locks.LockAll(keys...)
	defer unlock()

	documentPath := filepath.Join(dir, documentFile)
	var document map[string]json.RawMessage
	if err := readJSON(documentPath, &document); err != nil {
		return domain.BundleRef{}, err
	}
	data, err := json.Marshal(facture)
	if err != nil {
		return domain.BundleRef{}, domain.WrapError(domain.ErrInvalidInput, "correct bundle", err)
	}
	document["data_facture"] = data
	document["corrected"] = json.RawMessage("true")
	stamp, _ := json.Marshal(s.now().Format(time.RFC3339))
	document["corrected_timestamp"] = stamp
	if err := writeJSONAtomic(documentPath, document); err != nil {
		return domain.BundleRef{}, storageErr("write corrected document", err)
	}

	if !rename {
		return ref, nil
	}
	target := filepath.Join(filepath.Dir(dir), newFolderName)
	if _, err := os.Lstat(target); err == nil {
		s.logger.Warn("correction_rename_skipped", "path", ref.Path, "target", newFolderName)
		return ref, nil
	}
	if err := os.Rename(dir, target); err != nil {
		return domain.BundleRef{}, storageErr("rename corrected bundle", err)
	}
	ref.Path = strings.TrimPrefix(filepath.ToSlash(filepath.Join(filepath.Dir(filepath.FromSlash(ref.Path)), newFolderName)), "./")
	return ref, nil
}

// bundleLockKey maps a bundle reference to the lock guarding the same folder
// during relocation or filing.
func (s *Storage) bundleLockKey(ref domain.BundleRef, name string) string {
	parts := strings.Split(ref.Path, "/")
	switch {
	case ref.Area == domain.AreaArchive && len(parts) == 2:
		return parentLockKey(parts[0], name)
	default:
		return tripLockKey(name)
	}
}
