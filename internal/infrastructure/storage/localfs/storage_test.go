package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

func newTestStorage(t *testing.T, options Options) *Storage {
	t.Helper()
	root := t.TempDir()
	options.Now = func() time.Time { return time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC) }
	store, err := NewWithOptions(filepath.Join(root, "Facturas"), filepath.Join(root, "temp"), options)
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	return store
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func stageTrip(t *testing.T, store *Storage, folder, business, code string) {
	t.Helper()
	date := folder[:10]
	body := `{"metadata":{"type":"facture_trip","folder_name":"` + folder + `"},` +
		`"data_facture":{"name_business":"` + business + `","code_facture":"` + code + `","recibes_trip":"` + date + ` 08:00:00"},` +
		`"data_crud":"raw"}`
	writeFile(t, filepath.Join(store.StagingRoot(), folder, documentFile), body)
	writeFile(t, filepath.Join(store.StagingRoot(), folder, tripOriginalFile), "jpeg")
}

func writeParent(t *testing.T, store *Storage, business, folder, description string) domain.ParentFolder {
	t.Helper()
	body := `{"data_facture":{"concepts":[{"description":"` + description + `"}]},"data_crud":"raw"}`
	writeFile(t, filepath.Join(store.ArchiveRoot(), business, folder, documentFile), body)
	date, _ := domain.ParseParentFolderDate(folder)
	return domain.ParentFolder{Business: business, Name: folder, Date: date, Path: filepath.Join(store.ArchiveRoot(), business, folder)}
}

func collectStaged(t *testing.T, store *Storage) []domain.TripRecord {
	t.Helper()
	seq, err := store.ListStaged(context.Background())
	if err != nil {
		t.Fatalf("ListStaged() error = %v", err)
	}
	var records []domain.TripRecord
	for record := range seq {
		records = append(records, record)
	}
	return records
}

func TestListStagedSkipsIncompleteAndMalformed(t *testing.T) {
	store := newTestStorage(t, Options{})
	stageTrip(t, store, "2024-03-10_T-100", "Acme, S.A. de C.V.", "T-100")
	writeFile(t, filepath.Join(store.StagingRoot(), "2024-03-11_T-101", tripOriginalFile), "jpeg")
	writeFile(t, filepath.Join(store.StagingRoot(), "2024-03-12_T-102", documentFile), "{not json")
	writeFile(t, filepath.Join(store.StagingRoot(), "notes", documentFile), "{}")
	writeFile(t, filepath.Join(store.StagingRoot(), ".incoming-x", documentFile), "{}")

	records := collectStaged(t, store)
	if len(records) != 1 {
		t.Fatalf("expected 1 staged record, got %d", len(records))
	}
	record := records[0]
	if record.Code != "T-100" || record.Business != "Acme" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.Key.FolderName() != "2024-03-10_T-100" {
		t.Fatalf("unexpected key %s", record.Key)
	}
}

func TestListStagedIsSingleUse(t *testing.T) {
	store := newTestStorage(t, Options{})
	stageTrip(t, store, "2024-03-10_T-100", "Acme", "T-100")

	seq, err := store.ListStaged(context.Background())
	if err != nil {
		t.Fatalf("ListStaged() error = %v", err)
	}
	first, second := 0, 0
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	if first != 1 || second != 0 {
		t.Fatalf("expected 1 then 0 records, got %d then %d", first, second)
	}
}

func TestListStagedMissingRootIsEmpty(t *testing.T) {
	store := newTestStorage(t, Options{})
	if err := os.RemoveAll(store.StagingRoot()); err != nil {
		t.Fatalf("remove staging: %v", err)
	}
	if records := collectStaged(t, store); len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestListParentFoldersFiltersAndHandlesMissingBusiness(t *testing.T) {
	store := newTestStorage(t, Options{})
	writeParent(t, store, "Acme", "2024-03-09_12-00-00", "T-1")
	writeParent(t, store, "Acme", "2024-03-15_09-30-00", "T-2")
	writeFile(t, filepath.Join(store.ArchiveRoot(), "Acme", "misc", "note.txt"), "x")

	folders, err := store.ListParentFolders(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("ListParentFolders() error = %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("expected 2 folders, got %d", len(folders))
	}
	if folders[0].Name != "2024-03-09_12-00-00" || !folders[0].Date.Equal(time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first folder %+v", folders[0])
	}

	for _, business := range []string{"Nobody", "", ".."} {
		folders, err := store.ListParentFolders(context.Background(), business)
		if err != nil || len(folders) != 0 {
			t.Fatalf("business %q: expected empty result, got %v %v", business, folders, err)
		}
	}
}

func TestReadParentDocument(t *testing.T) {
	store := newTestStorage(t, Options{})
	parent := writeParent(t, store, "Acme", "2024-03-15_09-30-00", "Flete T-100")

	doc, err := store.ReadParentDocument(context.Background(), parent)
	if err != nil {
		t.Fatalf("ReadParentDocument() error = %v", err)
	}
	if !doc.Mentions("T-100") {
		t.Fatalf("expected document to mention T-100: %+v", doc)
	}

	writeFile(t, filepath.Join(parent.Path, documentFile), `{"data_crud":"only"}`)
	if _, err := store.ReadParentDocument(context.Background(), parent); !domain.IsKind(err, domain.ErrMalformedRecord) {
		t.Fatalf("expected malformed record, got %v", err)
	}

	missing := domain.ParentFolder{Business: "Acme", Name: "2024-03-16_00-00-00"}
	if _, err := store.ReadParentDocument(context.Background(), missing); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRelocateMovesBundle(t *testing.T) {
	store := newTestStorage(t, Options{})
	stageTrip(t, store, "2024-03-10_T-100", "Acme", "T-100")
	parent := writeParent(t, store, "Acme", "2024-03-15_09-30-00", "T-100")
	key, _ := domain.ParseTripFolderName("2024-03-10_T-100")

	dest, err := store.Relocate(context.Background(), key, parent)
	if err != nil {
		t.Fatalf("Relocate() error = %v", err)
	}
	if dest != filepath.Join(parent.Path, "2024-03-10_T-100") {
		t.Fatalf("unexpected destination %s", dest)
	}
	if _, err := os.Stat(filepath.Join(dest, documentFile)); err != nil {
		t.Fatalf("expected moved document: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.StagingRoot(), "2024-03-10_T-100")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected staged folder to be gone, got %v", err)
	}

	if _, err := store.Relocate(context.Background(), key, parent); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second relocate, got %v", err)
	}
}

func TestRelocateRequiresExistingParent(t *testing.T) {
	store := newTestStorage(t, Options{})
	stageTrip(t, store, "2024-03-10_T-100", "Acme", "T-100")
	key, _ := domain.ParseTripFolderName("2024-03-10_T-100")

	_, err := store.Relocate(context.Background(), key, domain.ParentFolder{Business: "Acme", Name: "2024-03-15_09-30-00"})
	if !domain.IsKind(err, domain.ErrStorageIO) {
		t.Fatalf("expected storage io error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.StagingRoot(), "2024-03-10_T-100")); err != nil {
		t.Fatalf("staged bundle must stay in place: %v", err)
	}
}

func TestRelocateConflictPolicies(t *testing.T) {
	for _, tc := range []struct {
		name   string
		policy ConflictPolicy
		kind   error
	}{
		{name: "replace", policy: ReplaceExisting},
		{name: "reject", policy: RejectExisting, kind: domain.ErrFileConflict},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStorage(t, Options{OnConflict: tc.policy})
			stageTrip(t, store, "2024-03-10_T-100", "Acme", "T-100")
			parent := writeParent(t, store, "Acme", "2024-03-15_09-30-00", "T-100")
			writeFile(t, filepath.Join(parent.Path, "2024-03-10_T-100", "stale.txt"), "old")
			key, _ := domain.ParseTripFolderName("2024-03-10_T-100")

			_, err := store.Relocate(context.Background(), key, parent)
			if tc.kind != nil {
				if !domain.IsKind(err, tc.kind) {
					t.Fatalf("expected %v, got %v", tc.kind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Relocate() error = %v", err)
			}
			if _, err := os.Stat(filepath.Join(parent.Path, "2024-03-10_T-100", "stale.txt")); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("expected previous occupant to be replaced")
			}
		})
	}
}

func TestRelocateConcurrentCallersMoveOnce(t *testing.T) {
	store := newTestStorage(t, Options{})
	stageTrip(t, store, "2024-03-10_T-100", "Acme", "T-100")
	parent := writeParent(t, store, "Acme", "2024-03-15_09-30-00", "T-100")
	key, _ := domain.ParseTripFolderName("2024-03-10_T-100")

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Relocate(context.Background(), key, parent)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	moved, notFound := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			moved++
		case domain.IsKind(err, domain.ErrNotFound):
			notFound++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if moved != 1 || notFound != callers-1 {
		t.Fatalf("expected 1 move and %d not found, got %d and %d", callers-1, moved, notFound)
	}
	if store.locks.size() != 0 {
		t.Fatalf("expected lock table to drain, got %d entries", store.locks.size())
	}
}

func tripBundle(code string) domain.TripBundle {
	received := domain.NewTimestamp(time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC))
	return domain.TripBundle{
		Facture: domain.FactureTrip{BusinessName: "Acme", Code: code, ReceivedAt: received},
		RawText: "ticket " + code,
		Assets:  domain.Assets{Original: []byte("orig"), Enhanced: []byte("enh")},
	}
}

func TestWriteTripBundleStagesAndFiles(t *testing.T) {
	store := newTestStorage(t, Options{})

	stored, err := store.WriteTripBundle(context.Background(), nil, tripBundle("T-100"))
	if err != nil {
		t.Fatalf("WriteTripBundle(staging) error = %v", err)
	}
	if stored.FolderPath != filepath.Join(store.StagingRoot(), "2024-03-10_T-100") || len(stored.Files) != 3 {
		t.Fatalf("unexpected stored bundle %+v", stored)
	}
	raw, err := os.ReadFile(filepath.Join(stored.FolderPath, documentFile))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	var doc tripDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.Metadata.Type != "facture_trip" || doc.Metadata.FolderName != "2024-03-10_T-100" || doc.DataCrud != "ticket T-100" {
		t.Fatalf("unexpected document %+v", doc)
	}

	parent := writeParent(t, store, "Acme", "2024-03-15_09-30-00", "T-100")
	stored, err = store.WriteTripBundle(context.Background(), &parent, tripBundle("T-100"))
	if err != nil {
		t.Fatalf("WriteTripBundle(parent) error = %v", err)
	}
	if stored.FolderPath != filepath.Join(parent.Path, "2024-03-10_T-100") {
		t.Fatalf("unexpected folder %s", stored.FolderPath)
	}
	if _, err := os.Stat(filepath.Join(store.StagingRoot(), "2024-03-10_T-100")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected staged duplicate to be removed")
	}
	entries, _ := os.ReadDir(parent.Path)
	for _, entry := range entries {
		if entry.Name() != documentFile && entry.Name() != "2024-03-10_T-100" {
			t.Fatalf("unexpected leftover %s", entry.Name())
		}
	}
}

func TestWriteTripBundleRejectsMissingCode(t *testing.T) {
	store := newTestStorage(t, Options{})
	if _, err := store.WriteTripBundle(context.Background(), nil, tripBundle("")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func weekendBundle() domain.WeekendBundle {
	return domain.WeekendBundle{
		Facture: domain.FactureWeekend{
			IssuerRFC:    "AAA010101AAA",
			ReceiverName: "Acme, S.A.",
			TaxFolio:     "F-1",
			IssuedAt:     domain.NewTimestamp(time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)),
			Description:  "Fletes T-100",
		},
		RawText: "weekend",
		Assets:  domain.Assets{Original: []byte("orig"), Enhanced: []byte("enh")},
	}
}

func TestWriteWeekendBundleKeepsFiledTrips(t *testing.T) {
	store := newTestStorage(t, Options{})
	parent, stored, err := store.WriteWeekendBundle(context.Background(), weekendBundle())
	if err != nil {
		t.Fatalf("WriteWeekendBundle() error = %v", err)
	}
	if parent.Business != "Acme" || parent.Name != "2024-03-15_09-30-00" {
		t.Fatalf("unexpected parent %+v", parent)
	}
	if len(stored.Files) != 3 {
		t.Fatalf("expected 3 files, got %v", stored.Files)
	}
	writeFile(t, filepath.Join(parent.Path, "2024-03-10_T-100", documentFile), "{}")

	if _, _, err := store.WriteWeekendBundle(context.Background(), weekendBundle()); err != nil {
		t.Fatalf("second WriteWeekendBundle() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(parent.Path, "2024-03-10_T-100", documentFile)); err != nil {
		t.Fatalf("filed trip must survive re-filing: %v", err)
	}
	doc, err := store.ReadParentDocument(context.Background(), parent)
	if err != nil || !doc.Mentions("T-100") {
		t.Fatalf("expected readable parent mentioning T-100, got %+v %v", doc, err)
	}
}

func TestBrowseAndDelete(t *testing.T) {
	store := newTestStorage(t, Options{})
	writeParent(t, store, "Acme", "2024-03-09_12-00-00", "T-1")
	writeParent(t, store, "Acme", "2024-03-15_09-30-00", "T-2")

	businesses, err := store.ListBusinesses(context.Background())
	if err != nil {
		t.Fatalf("ListBusinesses() error = %v", err)
	}
	if len(businesses) != 1 || len(businesses[0].DateFolders) != 2 {
		t.Fatalf("unexpected businesses %+v", businesses)
	}
	if businesses[0].DateFolders[0].Name != "2024-03-15_09-30-00" {
		t.Fatalf("expected newest first, got %s", businesses[0].DateFolders[0].Name)
	}

	contents, err := store.FolderContents(context.Background(), "Acme", "2024-03-15_09-30-00")
	if err != nil {
		t.Fatalf("FolderContents() error = %v", err)
	}
	if len(contents.Files) != 1 || contents.Files[0].Extension != ".json" {
		t.Fatalf("unexpected contents %+v", contents)
	}

	if err := store.DeleteParentFolder(context.Background(), "Acme", "2024-03-15_09-30-00"); err != nil {
		t.Fatalf("DeleteParentFolder() error = %v", err)
	}
	if err := store.DeleteParentFolder(context.Background(), "Acme", "2024-03-15_09-30-00"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.DeleteParentFolder(context.Background(), "Acme", "2024-03-09_12-00-00"); err != nil {
		t.Fatalf("DeleteParentFolder() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.ArchiveRoot(), "Acme")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected empty business directory to be removed")
	}
}

func TestCorrectBundleRewritesAndRenames(t *testing.T) {
	store := newTestStorage(t, Options{})
	stageTrip(t, store, "2024-03-10_T-100", "Acme", "T-100")

	corrected := tripBundle("T-200").Facture
	ref, err := store.CorrectBundle(context.Background(),
		domain.BundleRef{Area: domain.AreaStaging, Path: "2024-03-10_T-100"},
		corrected.TripKey().FolderName(), corrected)
	if err != nil {
		t.Fatalf("CorrectBundle() error = %v", err)
	}
	if ref.Path != "2024-03-10_T-200" {
		t.Fatalf("expected renamed ref, got %+v", ref)
	}
	var doc map[string]json.RawMessage
	raw, _ := os.ReadFile(filepath.Join(store.StagingRoot(), ref.Path, documentFile))
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(doc["corrected"]) != "true" || len(doc["metadata"]) == 0 {
		t.Fatalf("expected corrected flag and preserved metadata: %s", raw)
	}

	stageTrip(t, store, "2024-03-10_T-300", "Acme", "T-300")
	ref, err = store.CorrectBundle(context.Background(),
		domain.BundleRef{Area: domain.AreaStaging, Path: "2024-03-10_T-300"}, "2024-03-10_T-200", corrected)
	if err != nil {
		t.Fatalf("CorrectBundle() error = %v", err)
	}
	if ref.Path != "2024-03-10_T-300" {
		t.Fatalf("occupied name must leave folder in place, got %s", ref.Path)
	}

	_, err = store.CorrectBundle(context.Background(), domain.BundleRef{Area: domain.AreaStaging, Path: "../etc"}, "", corrected)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected escaping path to resolve inside root and miss, got %v", err)
	}
}
