package domain

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

type DateFolder struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	IssuedAt time.Time `json:"issued_at"`
}

// BusinessDirectory lists the period folders of one business, newest first.
type BusinessDirectory struct {
	Name        string       `json:"name"`
	Path        string       `json:"path"`
	DateFolders []DateFolder `json:"date_folders"`
}

type FileInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
}

type FolderContents struct {
	Business string     `json:"business"`
	Folder   string     `json:"folder"`
	Path     string     `json:"path"`
	Files    []FileInfo `json:"files"`
}

type BundleArea string

const (
	AreaArchive BundleArea = "archive"
	AreaStaging BundleArea = "staging"
)

// BundleRef addresses a bundle folder relative to the root of its area.
type BundleRef struct {
	Area BundleArea `json:"area"`
	Path string     `json:"path"`
}

// Clean validates the reference and returns it with a normalized slash path.
func (r BundleRef) Clean() (BundleRef, error) {
	if r.Area == "" {
		r.Area = AreaArchive
	}
	if r.Area != AreaArchive && r.Area != AreaStaging {
		return BundleRef{}, WrapError(ErrInvalidInput, "bundle ref", fmt.Errorf("unknown area %q", r.Area))
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(strings.TrimSpace(r.Path), "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return BundleRef{}, WrapError(ErrInvalidInput, "bundle ref", fmt.Errorf("empty path"))
	}
	r.Path = cleaned
	return r, nil
}

type CorrectionResult struct {
	Ref         BundleRef       `json:"ref"`
	Kind        InvoiceType     `json:"model_type"`
	Renamed     bool            `json:"folder_renamed"`
	FolderName  string          `json:"folder_name"`
	CorrectedAt time.Time       `json:"corrected_at"`
	FactureData json.RawMessage `json:"data_facture"`
}

// ArchiveEntry is one exported weekend invoice with the trips filed under it.
type ArchiveEntry struct {
	Folder  string
	Weekend FactureWeekend
	Trips   []FactureTrip
}
