package ocrspace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
	"github.com/kirillkom/facture-organizer/internal/infrastructure/resilience"
)

func TestRecognizeAveragesWordConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.FormValue("apikey") != "secret" || r.FormValue("language") != "spa" || r.FormValue("OCREngine") != "2" {
			t.Fatalf("unexpected form values: %v", r.MultipartForm.Value)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		data, _ := io.ReadAll(file)
		if header.Filename != "scan.png" || string(data) != "image-bytes" {
			t.Fatalf("unexpected upload %s %q", header.Filename, data)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"IsErroredOnProcessing": false,
			"ParsedResults": []map[string]any{{
				"ParsedText": "  Peso Bruto 100\nTara 10  ",
				"TextOverlay": map[string]any{"Lines": []map[string]any{
					{"Words": []map[string]any{{"WordConfidence": 90}, {"WordConfidence": 80}}},
					{"Words": []map[string]any{{"WordConfidence": 70}}},
				}},
			}},
		})
	}))
	defer server.Close()

	got, err := New(server.URL, "secret").Recognize(context.Background(), []byte("image-bytes"), "scan.png")
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if got.Text != "Peso Bruto 100\nTara 10" || got.WordCount != 5 || got.Confidence != 80 {
		t.Fatalf("unexpected recognition %+v", got)
	}
}

func TestRecognizeReportsProcessingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"IsErroredOnProcessing":true,"ErrorMessage":["File failed validation","Unsupported type"]}`)
	}))
	defer server.Close()

	_, err := New(server.URL, "k").Recognize(context.Background(), []byte("x"), "x.png")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if want := "File failed validation; Unsupported type"; !strings.Contains(err.Error(), want) {
		t.Fatalf("expected %q in %v", want, err)
	}
}

func TestRecognizeRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"IsErroredOnProcessing":false,"ParsedResults":[{"ParsedText":"CFDI"}]}`)
	}))
	defer server.Close()

	cfg := resilience.DefaultConfig()
	cfg.RetryInitialBackoff = time.Millisecond
	cfg.RetryMaxBackoff = time.Millisecond
	client := New(server.URL, "k", WithExecutor(resilience.NewExecutor(cfg, nil)))

	got, err := client.Recognize(context.Background(), []byte("x"), "x.png")
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if got.Text != "CFDI" || got.Confidence != 0 || calls.Load() != 3 {
		t.Fatalf("unexpected result %+v after %d calls", got, calls.Load())
	}
}

func TestRecognizeMarksExhaustedOutageTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, "k").Recognize(context.Background(), []byte("x"), "x.png")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestRetryAfterHeader(t *testing.T) {
	header := http.Header{}
	if retryAfter(header) != 0 {
		t.Fatal("expected no hint without header")
	}
	header.Set("Retry-After", "3")
	if got := retryAfter(header); got != 3*time.Second {
		t.Fatalf("retryAfter() = %v", got)
	}
	header.Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
	if retryAfter(header) != 0 {
		t.Fatal("expected http-date form to be ignored")
	}
}
