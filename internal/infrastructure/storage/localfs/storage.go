package localfs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

const (
	documentFile      = "factura.json"
	tripOriginalFile  = "factura_original.jpeg"
	tripEnhancedFile  = "factura_enhanced.png"
	assetBaseName     = "factura"
	incomingDirPrefix = ".incoming-"
)

// ConflictPolicy decides what happens when a bundle folder is written or moved
// onto a folder of the same name.
type ConflictPolicy int

const (
	// ReplaceExisting deletes the previous occupant. Last writer wins.
	ReplaceExisting ConflictPolicy = iota
	// RejectExisting fails with domain.ErrFileConflict.
	RejectExisting
)

type Options struct {
	OnConflict ConflictPolicy
	Logger     *slog.Logger
	Now        func() time.Time
}

// Storage is the filesystem record store:
//
//	<archiveRoot>/<business>/<YYYY-MM-DD_HH-MM-SS>/factura.json
//	<archiveRoot>/<business>/<YYYY-MM-DD_HH-MM-SS>/<YYYY-MM-DD>_<code>/...
//	<stagingRoot>/<YYYY-MM-DD>_<code>/...
type Storage struct {
	archiveRoot string
	stagingRoot string
	onConflict  ConflictPolicy
	logger      *slog.Logger
	now         func() time.Time
	locks       *keyedMutex
}

func New(archiveRoot, stagingRoot string) (*Storage, error) {
	return NewWithOptions(archiveRoot, stagingRoot, Options{})
}

func NewWithOptions(archiveRoot, stagingRoot string, options Options) (*Storage, error) {
	if archiveRoot == "" {
		archiveRoot = "./Facturas"
	}
	if stagingRoot == "" {
		stagingRoot = "./temp"
	}
	for _, dir := range []string{archiveRoot, stagingRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Storage{
		archiveRoot: archiveRoot,
		stagingRoot: stagingRoot,
		onConflict:  options.OnConflict,
		logger:      logger.With("component", "record_store"),
		now:         now,
		locks:       newKeyedMutex(),
	}, nil
}

func (s *Storage) ArchiveRoot() string { return s.archiveRoot }

func (s *Storage) StagingRoot() string { return s.stagingRoot }

// resolveConflict applies the configured policy to an occupied target folder.
func (s *Storage) resolveConflict(target string) error {
	if _, err := os.Lstat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return storageErr("inspect target", err)
	}
	switch s.onConflict {
	case RejectExisting:
		return domain.WrapError(domain.ErrFileConflict, "resolve conflict", fmt.Errorf("%s already exists", target))
	default:
		s.logger.Warn("bundle_replaced", "path", target)
		if err := os.RemoveAll(target); err != nil {
			return storageErr("remove previous bundle", err)
		}
		return nil
	}
}

func (s *Storage) parentPath(business, folder string) (string, error) {
	if !isPathElement(business) || !isPathElement(folder) {
		return "", domain.WrapError(domain.ErrInvalidInput, "parent path", fmt.Errorf("invalid folder %q/%q", business, folder))
	}
	return filepath.Join(s.archiveRoot, business, folder), nil
}

func isPathElement(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

func storageErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return domain.WrapError(domain.ErrNotFound, operation, err)
	}
	return domain.WrapError(domain.ErrStorageIO, operation, err)
}
