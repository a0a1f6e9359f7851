package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

func day(value string) time.Time {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func stagedTrip(date, code, business string) domain.TripRecord {
	return domain.TripRecord{
		Key:      domain.TripKey{Date: day(date), Code: code},
		Business: business,
		Code:     code,
	}
}

func parentFolder(business, name string) domain.ParentFolder {
	date, err := domain.ParseParentFolderDate(name)
	if err != nil {
		panic(err)
	}
	return domain.ParentFolder{Business: business, Name: name, Date: date}
}

type docLoaderFake struct {
	docs   map[string]domain.ParentDocument
	errs   map[string]error
	loaded []string
}

func (f *docLoaderFake) load(folder domain.ParentFolder) (domain.ParentDocument, error) {
	f.loaded = append(f.loaded, folder.Name)
	if err, ok := f.errs[folder.Name]; ok {
		return domain.ParentDocument{}, err
	}
	return f.docs[folder.Name], nil
}

func TestMatcherFindsParentMentioningCode(t *testing.T) {
	loader := &docLoaderFake{docs: map[string]domain.ParentDocument{
		"2025-09-27_10-00-00": {ConceptDescriptions: []string{"Servicio de flete GPE 2"}},
	}}
	result := NewMatcher(nil).Match(
		stagedTrip("2025-09-25", "GPE", "Acme"),
		[]domain.ParentFolder{parentFolder("Acme", "2025-09-27_10-00-00")},
		loader.load,
	)
	if !result.Found() || result.Parent.Name != "2025-09-27_10-00-00" {
		t.Fatalf("expected match, got %+v", result)
	}
}

func TestMatcherSkipsEarlierParentsWithoutLoading(t *testing.T) {
	loader := &docLoaderFake{docs: map[string]domain.ParentDocument{
		"2025-09-20_10-00-00": {ConceptDescriptions: []string{"GPE"}},
	}}
	result := NewMatcher(nil).Match(
		stagedTrip("2025-09-25", "GPE", "Acme"),
		[]domain.ParentFolder{parentFolder("Acme", "2025-09-20_10-00-00")},
		loader.load,
	)
	if result.Found() {
		t.Fatalf("expected no match for earlier parent")
	}
	if len(loader.loaded) != 0 {
		t.Fatalf("earlier parent must not be read, loaded %v", loader.loaded)
	}
}

func TestMatcherSameDayParentQualifies(t *testing.T) {
	loader := &docLoaderFake{docs: map[string]domain.ParentDocument{
		"2025-09-25_00-00-01": {Description: "viajes GPE"},
	}}
	result := NewMatcher(nil).Match(
		stagedTrip("2025-09-25", "GPE", "Acme"),
		[]domain.ParentFolder{parentFolder("Acme", "2025-09-25_00-00-01")},
		loader.load,
	)
	if !result.Found() {
		t.Fatalf("expected fallback description to match")
	}
}

func TestMatcherCountsUnreadableCandidates(t *testing.T) {
	loader := &docLoaderFake{
		docs: map[string]domain.ParentDocument{
			"2025-09-29_10-00-00": {ConceptDescriptions: []string{"GPE"}},
		},
		errs: map[string]error{
			"2025-09-27_10-00-00": domain.WrapError(domain.ErrMalformedRecord, "decode", errors.New("bad json")),
			"2025-09-28_10-00-00": domain.WrapError(domain.ErrNotFound, "read", errors.New("gone")),
		},
	}
	result := NewMatcher(nil).Match(
		stagedTrip("2025-09-25", "GPE", "Acme"),
		[]domain.ParentFolder{
			parentFolder("Acme", "2025-09-27_10-00-00"),
			parentFolder("Acme", "2025-09-28_10-00-00"),
			parentFolder("Acme", "2025-09-29_10-00-00"),
		},
		loader.load,
	)
	if !result.Found() || result.Parent.Name != "2025-09-29_10-00-00" {
		t.Fatalf("expected later candidate to match, got %+v", result)
	}
	if result.InspectionErrors != 1 {
		t.Fatalf("expected 1 inspection error (missing documents are silent), got %d", result.InspectionErrors)
	}
}

// With several qualifying parents the first in enumeration order wins, even
// when a later one is closer to the trip date.
func TestMatcherFirstInEnumerationOrderWins(t *testing.T) {
	loader := &docLoaderFake{docs: map[string]domain.ParentDocument{
		"2025-10-30_10-00-00": {ConceptDescriptions: []string{"GPE"}},
		"2025-09-26_10-00-00": {ConceptDescriptions: []string{"GPE"}},
	}}
	result := NewMatcher(nil).Match(
		stagedTrip("2025-09-25", "GPE", "Acme"),
		[]domain.ParentFolder{
			parentFolder("Acme", "2025-10-30_10-00-00"),
			parentFolder("Acme", "2025-09-26_10-00-00"),
		},
		loader.load,
	)
	if !result.Found() || result.Parent.Name != "2025-10-30_10-00-00" {
		t.Fatalf("expected first enumerated candidate, got %+v", result)
	}
}

func TestMatcherEmptyCodeNeverMatches(t *testing.T) {
	loader := &docLoaderFake{docs: map[string]domain.ParentDocument{
		"2025-09-27_10-00-00": {ConceptDescriptions: []string{"anything"}},
	}}
	result := NewMatcher(nil).Match(
		stagedTrip("2025-09-25", "", "Acme"),
		[]domain.ParentFolder{parentFolder("Acme", "2025-09-27_10-00-00")},
		loader.load,
	)
	if result.Found() || len(loader.loaded) != 0 {
		t.Fatalf("expected no match and no reads for empty code")
	}
}
