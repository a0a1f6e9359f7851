package imaging

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

const (
	DefaultMaxWidth = 2400
	defaultContrast = 25
	defaultSharpen  = 1.2
)

type Options struct {
	MaxWidth int
	Contrast float64
	Sharpen  float64
}

// Enhancer prepares scans for recognition: oversized images are shrunk, then
// converted to a sharpened high-contrast grayscale PNG.
type Enhancer struct {
	opts Options
}

func NewEnhancer(opts Options) *Enhancer {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Contrast == 0 {
		opts.Contrast = defaultContrast
	}
	if opts.Sharpen == 0 {
		opts.Sharpen = defaultSharpen
	}
	return &Enhancer{opts: opts}
}

func (e *Enhancer) Enhance(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "enhance image", err)
	}

	if img.Bounds().Dx() > e.opts.MaxWidth {
		img = imaging.Resize(img, e.opts.MaxWidth, 0, imaging.Lanczos)
	}
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, e.opts.Contrast)
	gray = imaging.Sharpen(gray, e.opts.Sharpen)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gray, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode enhanced image: %w", err)
	}
	return buf.Bytes(), nil
}
