package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
	"github.com/kirillkom/facture-organizer/internal/core/ports"
)

const (
	defaultIngestParallelism = 4
	defaultMaxUploadBytes    = 20 << 20
)

// tripFiler is the part of the reconciler the ingestion path files trips through.
type tripFiler interface {
	MatchOrStage(ctx context.Context, bundle domain.TripBundle) (domain.FilingResult, error)
}

type IngestConfig struct {
	MaxUploadBytes int64
	Parallelism    int
	Logger         *slog.Logger
}

// IngestFactureUseCase turns scanned invoices into stored bundles: enhance,
// recognize, classify, extract, then file.
type IngestFactureUseCase struct {
	store      ports.RecordStore
	trips      tripFiler
	recognizer ports.TextRecognizer
	pdfText    ports.PDFTextReader
	enhancer   ports.ImageEnhancer
	extractor  ports.FactureExtractor
	publisher  ports.EventPublisher

	maxUploadBytes int64
	parallelism    int
	logger         *slog.Logger
	now            func() time.Time
}

func NewIngestFactureUseCase(
	store ports.RecordStore,
	trips tripFiler,
	recognizer ports.TextRecognizer,
	pdfText ports.PDFTextReader,
	enhancer ports.ImageEnhancer,
	extractor ports.FactureExtractor,
	publisher ports.EventPublisher,
	cfg IngestConfig,
) *IngestFactureUseCase {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultIngestParallelism
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestFactureUseCase{
		store:          store,
		trips:          trips,
		recognizer:     recognizer,
		pdfText:        pdfText,
		enhancer:       enhancer,
		extractor:      extractor,
		publisher:      publisher,
		maxUploadBytes: cfg.MaxUploadBytes,
		parallelism:    cfg.Parallelism,
		logger:         logger.With("component", "ingest"),
		now:            time.Now,
	}
}

// Ingest processes a batch of uploads. A failing file is reported in its result
// and never fails the batch.
func (uc *IngestFactureUseCase) Ingest(ctx context.Context, uploads []domain.Upload, opts domain.IngestOptions) (domain.IngestReport, error) {
	if len(uploads) == 0 {
		return domain.IngestReport{}, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("no files uploaded"))
	}
	report := domain.IngestReport{
		BatchID: uuid.NewString(),
		Results: make([]domain.IngestFileResult, len(uploads)),
	}

	if opts.Parallel && len(uploads) > 1 {
		sem := make(chan struct{}, uc.parallelism)
		var wg sync.WaitGroup
		for i, upload := range uploads {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				report.Results[i] = uc.ingestOne(ctx, upload, opts.Enhance)
			}()
		}
		wg.Wait()
	} else {
		for i, upload := range uploads {
			report.Results[i] = uc.ingestOne(ctx, upload, opts.Enhance)
		}
	}

	for _, result := range report.Results {
		if result.Failed() {
			report.Failed++
		} else {
			report.Processed++
		}
	}
	uc.logger.Info("ingest_batch_completed",
		"batch_id", report.BatchID,
		"processed", report.Processed,
		"failed", report.Failed,
	)
	return report, nil
}

func (uc *IngestFactureUseCase) ingestOne(ctx context.Context, upload domain.Upload, enhance bool) (result domain.IngestFileResult) {
	result.Filename = sanitizeFilename(upload.Filename)
	defer func() {
		if recovered := recover(); recovered != nil {
			result.Error = fmt.Sprintf("internal error: %v", recovered)
		}
		if result.Failed() {
			uc.logger.Warn("ingest_file_failed", "filename", result.Filename, "error", result.Error)
		}
	}()

	if err := uc.validateUpload(upload); err != nil {
		result.Error = err.Error()
		return result
	}

	var (
		assets     domain.Assets
		recognized domain.RecognizedText
		err        error
	)
	if isPDF(upload.Data) {
		assets = domain.Assets{Original: upload.Data}
		recognized, err = uc.readPDF(ctx, result.Filename, upload.Data)
	} else {
		assets = domain.Assets{Original: upload.Data, Enhanced: upload.Data}
		if enhance && uc.enhancer != nil {
			enhanced, enhanceErr := uc.enhancer.Enhance(ctx, upload.Data)
			if enhanceErr != nil {
				uc.logger.Warn("image_enhance_failed", "filename", result.Filename, "error", enhanceErr)
			} else {
				assets.Enhanced = enhanced
			}
		}
		recognized, err = uc.recognize(ctx, result.Filename, assets, enhance)
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.OCRSource = recognized.Source
	result.Confidence = recognized.Confidence

	invoiceType, scores := DetectInvoiceType(recognized.Text)
	result.Type = invoiceType
	uc.logger.Debug("invoice_type_detected",
		"filename", result.Filename,
		"type", string(invoiceType),
		"weekend_score", scores.Weekend,
		"trip_score", scores.Trip,
	)

	switch invoiceType {
	case domain.InvoiceWeekend:
		err = uc.fileWeekend(ctx, recognized.Text, assets, &result)
	case domain.InvoiceTrip:
		err = uc.fileTrip(ctx, recognized.Text, assets, &result)
	default:
		err = domain.WrapError(domain.ErrUnsupportedInvoice, "ingest", fmt.Errorf("type %q", invoiceType))
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func (uc *IngestFactureUseCase) validateUpload(upload domain.Upload) error {
	if len(upload.Data) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("empty file"))
	}
	if int64(len(upload.Data)) > uc.maxUploadBytes {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload",
			fmt.Errorf("file exceeds %d bytes", uc.maxUploadBytes))
	}
	if detected := http.DetectContentType(upload.Data); !strings.HasPrefix(detected, "image/") && detected != "application/pdf" {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload",
			fmt.Errorf("unsupported content type %s", detected))
	}
	return nil
}

// recognize runs OCR over the original and, when it differs, the enhanced
// image, and keeps the better reading.
func (uc *IngestFactureUseCase) recognize(ctx context.Context, filename string, assets domain.Assets, enhance bool) (domain.RecognizedText, error) {
	best, err := uc.recognizer.Recognize(ctx, assets.Original, filename)
	if err == nil {
		best.Source = "original"
	}
	if enhance && len(assets.Enhanced) > 0 && !bytes.Equal(assets.Enhanced, assets.Original) {
		enhanced, enhancedErr := uc.recognizer.Recognize(ctx, assets.Enhanced, enhancedFilename(filename))
		if enhancedErr == nil {
			enhanced.Source = "enhanced"
			if err != nil || enhanced.Better(best) {
				best, err = enhanced, nil
			}
		} else if err != nil {
			err = errors.Join(err, enhancedErr)
		}
	}
	if err != nil {
		return domain.RecognizedText{}, fmt.Errorf("recognize text: %w", err)
	}
	if strings.TrimSpace(best.Text) == "" {
		return domain.RecognizedText{}, domain.WrapError(domain.ErrInvalidInput, "recognize text", errors.New("no text recognized"))
	}
	return best, nil
}

// readPDF prefers the embedded text layer and falls back to recognizing the
// document as a scan.
func (uc *IngestFactureUseCase) readPDF(ctx context.Context, filename string, data []byte) (domain.RecognizedText, error) {
	if uc.pdfText != nil {
		text, err := uc.pdfText.ReadText(ctx, data)
		if err != nil {
			uc.logger.Warn("pdf_text_failed", "filename", filename, "error", err)
		} else if text != "" {
			return domain.RecognizedText{
				Text:       text,
				WordCount:  len(strings.Fields(text)),
				Confidence: 100,
				Source:     "pdf_text",
			}, nil
		}
	}
	return uc.recognize(ctx, filename, domain.Assets{Original: data}, false)
}

func (uc *IngestFactureUseCase) fileWeekend(ctx context.Context, text string, assets domain.Assets, result *domain.IngestFileResult) error {
	facture, err := uc.extractor.ExtractWeekend(ctx, text)
	if err != nil {
		return fmt.Errorf("extract weekend invoice: %w", err)
	}
	if err := facture.Validate(); err != nil {
		return err
	}
	parent, stored, err := uc.store.WriteWeekendBundle(ctx, domain.WeekendBundle{Facture: facture, RawText: text, Assets: assets})
	if err != nil {
		return fmt.Errorf("write weekend bundle: %w", err)
	}
	result.Location = domain.LocationWeekendFolder
	result.Business = parent.Business
	result.Bundle = &stored
	uc.logger.Info("weekend_filed", "business", parent.Business, "folder", parent.Name)
	publishEvent(ctx, uc.publisher, uc.logger, domain.FactureEvent{
		ID:         uuid.NewString(),
		Type:       domain.EventWeekendFiled,
		Business:   parent.Business,
		Folder:     parent.Name,
		OccurredAt: uc.now().UTC(),
	})
	return nil
}

func (uc *IngestFactureUseCase) fileTrip(ctx context.Context, text string, assets domain.Assets, result *domain.IngestFileResult) error {
	facture, err := uc.extractor.ExtractTrip(ctx, text)
	if err != nil {
		return fmt.Errorf("extract trip invoice: %w", err)
	}
	filing, err := uc.trips.MatchOrStage(ctx, domain.TripBundle{Facture: facture, RawText: text, Assets: assets})
	if err != nil {
		return err
	}
	result.Location = filing.Location
	result.Business = facture.Business()
	result.Bundle = &filing.Bundle
	return nil
}

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

func enhancedFilename(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext) + "_enhanced.png"
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "factura.bin"
	}
	return base
}
