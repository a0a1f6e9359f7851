package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

// minTextLayerRunes is the shortest text layer treated as real content.
// Scanned PDFs often carry a few stray characters from the scanner stamp.
const minTextLayerRunes = 40

// Extractor reads the embedded text layer of PDF uploads so that digital
// invoices skip recognition.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ReadText returns the text layer of data, or "" when the PDF has none.
func (e *Extractor) ReadText(ctx context.Context, data []byte) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			text = ""
			err = domain.WrapError(domain.ErrInvalidInput, "read pdf text", fmt.Errorf("corrupt pdf: %v", recovered))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "read pdf text", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "read pdf text", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	text = strings.TrimSpace(string(raw))
	if len([]rune(text)) < minTextLayerRunes {
		return "", nil
	}
	return text, nil
}
