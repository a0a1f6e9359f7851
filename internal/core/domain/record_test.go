package domain

import (
	"testing"
	"time"
)

func TestTripKeyFolderNameDropsTimeOfDay(t *testing.T) {
	received := time.Date(2024, 3, 9, 17, 45, 3, 0, time.UTC)
	key := NewTripKey(received, " 04512 ")
	if got := key.FolderName(); got != "2024-03-09_04512" {
		t.Fatalf("FolderName() = %q", got)
	}
}

func TestParseTripFolderNameRoundTrip(t *testing.T) {
	key, err := ParseTripFolderName("2024-03-09_A_17")
	if err != nil {
		t.Fatalf("ParseTripFolderName() error = %v", err)
	}
	if key.Code != "A_17" || key.Date.Format("2006-01-02") != "2024-03-09" {
		t.Fatalf("unexpected key: %+v", key)
	}
	if key.FolderName() != "2024-03-09_A_17" {
		t.Fatalf("round trip mismatch: %q", key.FolderName())
	}
}

func TestParseTripFolderNameRejectsForeignNames(t *testing.T) {
	for _, name := range []string{"notes", "2024-03-09_", "2024-13-40_123", ".incoming-1"} {
		if _, err := ParseTripFolderName(name); err == nil {
			t.Fatalf("expected error for %q", name)
		}
	}
}

func TestParentFolderNames(t *testing.T) {
	issued := time.Date(2024, 3, 11, 8, 5, 9, 0, time.UTC)
	name := FormatParentFolderName(issued)
	if name != "2024-03-11_08-05-09" {
		t.Fatalf("FormatParentFolderName() = %q", name)
	}
	if !IsParentFolderName(name) || IsParentFolderName("2024-03-11") {
		t.Fatal("IsParentFolderName mismatch")
	}

	date, err := ParseParentFolderDate(name)
	if err != nil || !date.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("ParseParentFolderDate() = %v, %v", date, err)
	}
	full, err := ParseParentFolderTime(name)
	if err != nil || !full.Equal(issued) {
		t.Fatalf("ParseParentFolderTime() = %v, %v", full, err)
	}
}

func TestNormalizeBusinessName(t *testing.T) {
	cases := map[string]string{
		"Reciclados del Norte, S.A. de C.V.": "Reciclados del Norte",
		"  Papelera/Sur  ":                   "Papelera-Sur",
		"":                                   UnknownBusiness,
		"..":                                 UnknownBusiness,
		", sin nombre":                       UnknownBusiness,
	}
	for raw, want := range cases {
		if got := NormalizeBusinessName(raw); got != want {
			t.Fatalf("NormalizeBusinessName(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestParentDocumentMentions(t *testing.T) {
	doc := ParentDocument{
		ConceptDescriptions: []string{"SERVICIO DE FLETE 04512 04513"},
		Description:         "viajes semana 10 ref 09999",
	}
	for _, code := range []string{"04512", "09999"} {
		if !doc.Mentions(code) {
			t.Fatalf("expected %q to be mentioned", code)
		}
	}
	if doc.Mentions("07777") || doc.Mentions("") {
		t.Fatal("unexpected mention")
	}
}

func TestBundleRefClean(t *testing.T) {
	ref, err := BundleRef{Path: `Acme\2024-03-11_08-05-09/../2024-03-11_08-05-09/`}.Clean()
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if ref.Area != AreaArchive || ref.Path != "Acme/2024-03-11_08-05-09" {
		t.Fatalf("unexpected ref: %+v", ref)
	}

	if _, err := (BundleRef{Path: "../.."}).Clean(); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for escaping path, got %v", err)
	}
	if _, err := (BundleRef{Area: "elsewhere", Path: "x"}).Clean(); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown area, got %v", err)
	}
}
