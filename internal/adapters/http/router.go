package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/facture-organizer/internal/config"
	"github.com/kirillkom/facture-organizer/internal/core/domain"
	"github.com/kirillkom/facture-organizer/internal/core/ports"
	"github.com/kirillkom/facture-organizer/internal/observability/metrics"
)

const (
	serviceName    = "facture-api"
	maxUploadFiles = 20
	xlsxMediaType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Router struct {
	cfg       config.Config
	ingest    ports.FactureIngestor
	corrector ports.FactureCorrector
	archive   ports.ArchiveBrowser
	organizer ports.OrganizerService
	metrics   *metrics.HTTPServerMetrics
}

// NewRouter wires the HTTP surface. organizer and httpMetrics may be nil when
// the background organizer or metrics are disabled.
func NewRouter(
	cfg config.Config,
	ingest ports.FactureIngestor,
	corrector ports.FactureCorrector,
	archive ports.ArchiveBrowser,
	organizer ports.OrganizerService,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:       cfg,
		ingest:    ingest,
		corrector: corrector,
		archive:   archive,
		organizer: organizer,
		metrics:   httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/factures", rt.uploadFactures)
	mux.HandleFunc("PUT /v1/factures/correct", rt.correctFacture)

	mux.HandleFunc("GET /v1/businesses", rt.listBusinesses)
	mux.HandleFunc("GET /v1/businesses/{business}/factures", rt.searchFactures)
	mux.HandleFunc("GET /v1/businesses/{business}/factures/{folder}", rt.folderContents)
	mux.HandleFunc("DELETE /v1/businesses/{business}/factures/{folder}", rt.deleteFolder)
	mux.HandleFunc("GET /v1/businesses/{business}/export", rt.exportBusiness)

	mux.HandleFunc("GET /v1/organizer/status", rt.organizerStatus)
	mux.HandleFunc("POST /v1/organizer/run", rt.organizerRun)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressure)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.recordRateLimited)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadFactures(w http.ResponseWriter, r *http.Request) {
	maxBytes := rt.cfg.UploadMaxBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes*maxUploadFiles)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form: " + err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}
	if len(headers) > maxUploadFiles {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("at most %d files per request", maxUploadFiles)})
		return
	}

	uploads := make([]domain.Upload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload " + header.Filename})
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload " + header.Filename})
			return
		}
		uploads = append(uploads, domain.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	opts := domain.IngestOptions{
		Enhance:  formBool(r, "enhance", true),
		Parallel: formBool(r, "parallel", true),
	}
	report, err := rt.ingest.Ingest(r.Context(), uploads, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordIngestReport(serviceName, report)
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) correctFacture(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModelType     string          `json:"model_type"`
		CorrectedData json.RawMessage `json:"corrected_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	kind, ok := domain.ParseInvoiceType(req.ModelType)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unsupported model_type %q, expected %s or %s", req.ModelType, domain.InvoiceWeekend, domain.InvoiceTrip),
		})
		return
	}

	ref := domain.BundleRef{
		Area: domain.BundleArea(r.URL.Query().Get("area")),
		Path: r.URL.Query().Get("path"),
	}
	result, err := rt.corrector.Correct(r.Context(), ref, kind, req.CorrectedData)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) listBusinesses(w http.ResponseWriter, r *http.Request) {
	businesses, err := rt.archive.ListBusinesses(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if businesses == nil {
		businesses = []domain.BusinessDirectory{}
	}
	writeJSON(w, http.StatusOK, businesses)
}

func (rt *Router) searchFactures(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	folders, err := rt.archive.SearchByDateRange(r.Context(), r.PathValue("business"), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	if folders == nil {
		folders = []domain.FolderContents{}
	}
	writeJSON(w, http.StatusOK, folders)
}

func (rt *Router) folderContents(w http.ResponseWriter, r *http.Request) {
	contents, err := rt.archive.FolderContents(r.Context(), r.PathValue("business"), r.PathValue("folder"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contents)
}

func (rt *Router) deleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := rt.archive.Delete(r.Context(), r.PathValue("business"), r.PathValue("folder")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) exportBusiness(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	business := r.PathValue("business")
	data, err := rt.archive.Export(r.Context(), business, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(business)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (rt *Router) organizerStatus(w http.ResponseWriter, _ *http.Request) {
	if rt.organizer == nil {
		writeJSON(w, http.StatusOK, domain.SchedulerStatus{State: domain.SchedulerStopped})
		return
	}
	writeJSON(w, http.StatusOK, rt.organizer.Status())
}

func (rt *Router) organizerRun(w http.ResponseWriter, r *http.Request) {
	if rt.organizer == nil {
		writeError(w, domain.WrapError(domain.ErrNotStarted, "organizer run", errors.New("organizer is disabled")))
		return
	}
	summary, err := rt.organizer.TriggerNow(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) recordRateLimited(path string) {
	if rt.metrics != nil {
		rt.metrics.RecordRateLimited(serviceName, path)
	}
}

// parseRange reads the optional from/to query bounds. A date-only "to" covers
// the whole day.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		t, err := domain.ParseFlexibleTime(raw)
		if err != nil {
			return time.Time{}, time.Time{}, domain.WrapError(domain.ErrInvalidInput, "parse from", err)
		}
		from = t
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		t, err := domain.ParseFlexibleTime(raw)
		if err != nil {
			return time.Time{}, time.Time{}, domain.WrapError(domain.ErrInvalidInput, "parse to", err)
		}
		if len(raw) == len("2006-01-02") {
			t = t.Add(24*time.Hour - time.Second)
		}
		to = t
	}
	return from, to, nil
}

func formBool(r *http.Request, key string, fallback bool) bool {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func exportFilename(business string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, business)
	if name == "" {
		name = "archive"
	}
	return name + ".xlsx"
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		slog.Error("http_handler_failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
