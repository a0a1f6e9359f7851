package localfs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

type tripMetadata struct {
	ProcessedAt string `json:"processed_at"`
	Type        string `json:"type"`
	FolderName  string `json:"folder_name"`
}

type tripDocument struct {
	Metadata    tripMetadata       `json:"metadata"`
	DataFacture domain.FactureTrip `json:"data_facture"`
	DataCrud    string             `json:"data_crud"`
}

type weekendDocument struct {
	DataCrud            string                `json:"data_crud"`
	DataFacture         domain.FactureWeekend `json:"data_facture"`
	ProcessingTimestamp string                `json:"processing_timestamp"`
	DateFolder          string                `json:"date_folder"`
}

// parentDocumentView decodes only what matching needs, so a weekend document
// with unexpected amounts or dates can still be matched.
type parentDocumentView struct {
	DataFacture *struct {
		Concepts []struct {
			Description string `json:"description"`
		} `json:"concepts"`
		Description string `json:"description"`
	} `json:"data_facture"`
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes through a sibling temp file so readers never observe
// a partially written document.
func writeFileAtomic(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := encodeJSON(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, data)
}

func readJSON(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return storageErr("read document", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapError(domain.ErrMalformedRecord, "decode document", fmt.Errorf("%s: %w", path, err))
	}
	return nil
}

func decodeParentDocument(path string) (domain.ParentDocument, error) {
	var view parentDocumentView
	if err := readJSON(path, &view); err != nil {
		return domain.ParentDocument{}, err
	}
	if view.DataFacture == nil {
		return domain.ParentDocument{}, domain.WrapError(
			domain.ErrMalformedRecord,
			"decode parent document",
			errors.New(path+": data_facture is missing"),
		)
	}
	doc := domain.ParentDocument{Description: view.DataFacture.Description}
	for _, concept := range view.DataFacture.Concepts {
		doc.ConceptDescriptions = append(doc.ConceptDescriptions, concept.Description)
	}
	return doc, nil
}

// imageExtension sniffs the encoded format, defaulting to png.
func imageExtension(data []byte) string {
	if isPDF(data) {
		return "pdf"
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || format == "" {
		return "png"
	}
	return format
}

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
