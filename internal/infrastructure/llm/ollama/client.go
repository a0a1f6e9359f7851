package ollama

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
	"github.com/kirillkom/facture-organizer/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
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

func New(baseURL, genModel string, opts ...Option) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// generateJSON asks the model for a JSON answer and returns the outermost
// object found in the response text. Sampling is pinned to temperature 0 so
// the same ticket extracts the same way twice.
func (c *Client) generateJSON(ctx context.Context, system, prompt string) (string, error) {
	request := generateRequest{
		Model:   c.genModel,
		System:  system,
		Prompt:  prompt,
		Format:  "json",
		Options: map[string]any{"temperature": 0},
	}
	response, err := resilience.Call(ctx, c.executor, "ollama.generate", func(ctx context.Context) (generateResponse, error) {
		return c.generate(ctx, request)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return "", resilience.WrapTemporary("ollama generate", err, resilience.ClassifyHTTP)
	}

	object, ok := extractJSONObject(strings.TrimSpace(response.Response))
	if !ok {
		cause := errors.New("model returned no JSON object")
		if response.DoneReason == "length" {
			cause = errors.New("model answer was cut at the context length")
		}
		return "", domain.WrapError(domain.ErrMalformedRecord, "ollama generate", cause)
	}
	return object, nil
}

func extractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], true
	}
	return "", false
}
