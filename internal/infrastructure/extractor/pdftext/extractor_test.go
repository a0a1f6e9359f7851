package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

// buildPDF writes a single page document showing lines in Helvetica.
func buildPDF(lines ...string) []byte {
	var content strings.Builder
	content.WriteString("BT /F1 12 Tf 72 720 Td 14 TL\n")
	for _, line := range lines {
		fmt.Fprintf(&content, "(%s) Tj T*\n", line)
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, offset := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestReadTextReturnsTextLayer(t *testing.T) {
	data := buildPDF("Comprobante Fiscal Digital por Internet", "RFC receptor AAA010101AAA")

	text, err := NewExtractor().ReadText(context.Background(), data)
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if !strings.Contains(text, "Comprobante Fiscal") || !strings.Contains(text, "AAA010101AAA") {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestReadTextIgnoresShortTextLayer(t *testing.T) {
	text, err := NewExtractor().ReadText(context.Background(), buildPDF("scan"))
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestReadTextRejectsCorruptDocument(t *testing.T) {
	_, err := NewExtractor().ReadText(context.Background(), []byte("%PDF-1.4\nnot really a pdf"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
