package ocrspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
	"github.com/kirillkom/facture-organizer/internal/infrastructure/resilience"
)

const DefaultURL = "https://api.ocr.space/parse/image"

type HTTPStatusError struct {
	Code   int
	Status string
	Body   string
	// Wait is the Retry-After hint sent with throttling responses.
	Wait time.Duration
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("ocr.space status: %s: %s", e.Status, strings.TrimSpace(e.Body))
}

func (e *HTTPStatusError) StatusCode() int {
	return e.Code
}

func (e *HTTPStatusError) RetryAfter() time.Duration {
	return e.Wait
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(header http.Header) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header.Get("Retry-After")))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

type Client struct {
	url        string
	apiKey     string
	language   string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) { c.executor = executor }
}

func WithLanguage(language string) Option {
	return func(c *Client) {
		if strings.TrimSpace(language) != "" {
			c.language = language
		}
	}
}

func New(url, apiKey string, opts ...Option) *Client {
	if strings.TrimSpace(url) == "" {
		url = DefaultURL
	}
	client := &Client{
		url:        url,
		apiKey:     apiKey,
		language:   "spa",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type parseResponse struct {
	ParsedResults []struct {
		ParsedText  string `json:"ParsedText"`
		TextOverlay struct {
			Lines []struct {
				Words []struct {
					WordConfidence float64 `json:"WordConfidence"`
				} `json:"Words"`
			} `json:"Lines"`
		} `json:"TextOverlay"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	// ErrorMessage is a string or an array of strings depending on the failure.
	ErrorMessage json.RawMessage `json:"ErrorMessage"`
}

// Recognize uploads image to OCR.space and returns the first parsed page.
func (c *Client) Recognize(ctx context.Context, image []byte, filename string) (domain.RecognizedText, error) {
	result, err := resilience.Call(ctx, c.executor, "ocrspace.parse", func(ctx context.Context) (domain.RecognizedText, error) {
		return c.parse(ctx, image, filename)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return domain.RecognizedText{}, resilience.WrapTemporary("ocr.space parse", err, resilience.ClassifyHTTP)
	}
	return result, nil
}

func (c *Client) parse(ctx context.Context, image []byte, filename string) (domain.RecognizedText, error) {
	body, contentType, err := c.buildForm(image, filename)
	if err != nil {
		return domain.RecognizedText{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return domain.RecognizedText{}, fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RecognizedText{}, fmt.Errorf("ocr.space request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return domain.RecognizedText{}, &HTTPStatusError{
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   string(raw),
			Wait:   retryAfter(resp.Header),
		}
	}

	var parsed parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.RecognizedText{}, fmt.Errorf("decode ocr response: %w", err)
	}
	if parsed.IsErroredOnProcessing {
		return domain.RecognizedText{}, domain.WrapError(domain.ErrInvalidInput, "ocr.space parse", errors.New(errorMessage(parsed.ErrorMessage)))
	}
	if len(parsed.ParsedResults) == 0 {
		return domain.RecognizedText{}, domain.WrapError(domain.ErrInvalidInput, "ocr.space parse", errors.New("no parsed results"))
	}

	page := parsed.ParsedResults[0]
	text := strings.TrimSpace(page.ParsedText)
	var total float64
	var words int
	for _, line := range page.TextOverlay.Lines {
		for _, word := range line.Words {
			total += word.WordConfidence
			words++
		}
	}
	recognized := domain.RecognizedText{Text: text, WordCount: len(strings.Fields(text))}
	if words > 0 {
		recognized.Confidence = total / float64(words)
	}
	return recognized, nil
}

func (c *Client) buildForm(image []byte, filename string) (io.Reader, string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create ocr form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write ocr form file: %w", err)
	}
	fields := [][2]string{
		{"apikey", c.apiKey},
		{"language", c.language},
		{"isOverlayRequired", "true"},
		{"isTable", "true"},
		{"scale", "true"},
		{"OCREngine", "2"},
	}
	for _, field := range fields {
		if err := form.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("write ocr form field %s: %w", field[0], err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, "", fmt.Errorf("close ocr form: %w", err)
	}
	return &buf, form.FormDataContentType(), nil
}

func errorMessage(raw json.RawMessage) string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return strings.Join(many, "; ")
	}
	return "ocr processing failed"
}
