package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	tripDateLayout   = "2006-01-02"
	parentNameLayout = "2006-01-02_15-04-05"

	// UnknownBusiness is used when a record carries no business name.
	UnknownBusiness = "Desconocida"
)

var parentFolderPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}`)

// TripKey is the composite (date, code) identity of a trip record and the
// name of its bundle folder.
type TripKey struct {
	Date time.Time
	Code string
}

func NewTripKey(received time.Time, code string) TripKey {
	y, m, d := received.Date()
	return TripKey{
		Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Code: strings.TrimSpace(code),
	}
}

func (k TripKey) FolderName() string {
	return k.Date.Format(tripDateLayout) + "_" + k.Code
}

func (k TripKey) String() string {
	return k.FolderName()
}

// ParseTripFolderName reads a staging folder name of the form YYYY-MM-DD_<code>.
func ParseTripFolderName(name string) (TripKey, error) {
	datePart, code, ok := strings.Cut(name, "_")
	if !ok || strings.TrimSpace(code) == "" {
		return TripKey{}, fmt.Errorf("trip folder %q: expected <date>_<code>", name)
	}
	date, err := time.Parse(tripDateLayout, datePart)
	if err != nil {
		return TripKey{}, fmt.Errorf("trip folder %q: %w", name, err)
	}
	return TripKey{Date: date, Code: code}, nil
}

func FormatParentFolderName(issued time.Time) string {
	return issued.Format(parentNameLayout)
}

// IsParentFolderName reports whether name follows YYYY-MM-DD_HH-MM-SS.
func IsParentFolderName(name string) bool {
	return parentFolderPattern.MatchString(name)
}

// ParseParentFolderDate reads the calendar date prefix of a period folder name.
func ParseParentFolderDate(name string) (time.Time, error) {
	datePart, _, _ := strings.Cut(name, "_")
	date, err := time.Parse(tripDateLayout, datePart)
	if err != nil {
		return time.Time{}, fmt.Errorf("parent folder %q: %w", name, err)
	}
	return date, nil
}

// ParseParentFolderTime reads the full issuance time of a period folder name.
func ParseParentFolderTime(name string) (time.Time, error) {
	if len(name) < len(parentNameLayout) {
		return time.Time{}, fmt.Errorf("parent folder %q: too short", name)
	}
	return time.Parse(parentNameLayout, name[:len(parentNameLayout)])
}

// NormalizeBusinessName keeps the part before the first comma and makes it safe
// to use as a single directory name.
func NormalizeBusinessName(raw string) string {
	name, _, _ := strings.Cut(raw, ",")
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '-'
		default:
			return r
		}
	}, name)
	if name == "" || name == "." || name == ".." {
		return UnknownBusiness
	}
	return name
}

// TripRecord is a trip bundle waiting in the staging area.
type TripRecord struct {
	Key        TripKey
	Business   string
	Code       string
	ReceivedAt time.Time
	Path       string
	Facture    FactureTrip
}

// ParentFolder is a weekend invoice folder under a business directory.
type ParentFolder struct {
	Business string
	Name     string
	Date     time.Time
	Path     string
}

// ParentDocument is the part of a weekend invoice document inspected by matching.
type ParentDocument struct {
	ConceptDescriptions []string
	Description         string
}

// Mentions reports whether code occurs in any concept description or in the
// top-level description.
func (d ParentDocument) Mentions(code string) bool {
	if code == "" {
		return false
	}
	for _, description := range d.ConceptDescriptions {
		if strings.Contains(description, code) {
			return true
		}
	}
	return strings.Contains(d.Description, code)
}

// Assets are the two images stored beside every bundle document.
type Assets struct {
	Original []byte
	Enhanced []byte
}

// TripBundle is everything written for one trip record.
type TripBundle struct {
	Facture FactureTrip
	RawText string
	Assets  Assets
}

type WeekendBundle struct {
	Facture FactureWeekend
	RawText string
	Assets  Assets
}

// StoredBundle describes a bundle folder after it was written.
type StoredBundle struct {
	FolderPath string   `json:"folder_path"`
	Files      []string `json:"files"`
}
