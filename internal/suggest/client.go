// Package suggest adapts an Ollama-compatible JSON-generate API to the
// classify.Suggester port. Calls carry a request timeout and pass an
// x/time rate limiter; any failure surfaces as an error for the
// classification engine to degrade on.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/courier-labs/courier/internal/classify"
	"github.com/courier-labs/courier/internal/documents"
	"github.com/courier-labs/courier/pkg/formatting"
)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type suggestionPayload struct {
	DocType    string  `json:"doc_type"`
	Confidence float64 `json:"confidence"`
}

// Client implements classify.Suggester over an Ollama-compatible API.
type Client struct {
	http    *http.Client
	baseURL string
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Client from the configuration.
func New(cfg *Config, logger *slog.Logger) *Client {
	perSecond := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)

	return &Client{
		http:    &http.Client{Timeout: cfg.TimeoutDuration()},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		limiter: rate.NewLimiter(perSecond, cfg.Burst),
		logger:  logger.With("system", "suggest"),
	}
}

// Suggest asks the model for a document type. The confidence is clamped
// to [0, 1]; type validity is judged by the classification engine so the
// attempted suggestion can be recorded either way.
func (c *Client) Suggest(
	ctx context.Context,
	fields map[string]any,
	meta map[string]string,
) (*classify.Suggestion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	prompt, err := buildPrompt(fields, meta)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	var generated generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}

	payload, err := formatting.Parse[suggestionPayload](generated.Response)
	if err != nil {
		return nil, fmt.Errorf("parse suggestion: %w", err)
	}

	confidence := payload.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	suggestion := &classify.Suggestion{
		DocType:    documents.DocType(strings.ToUpper(strings.TrimSpace(payload.DocType))),
		Confidence: confidence,
	}

	c.logger.Debug("model suggestion",
		"doc_type", suggestion.DocType,
		"confidence", suggestion.Confidence,
	)
	return suggestion, nil
}

// buildPrompt renders a deterministic prompt: map marshaling sorts keys,
// so identical inputs produce identical prompts.
func buildPrompt(fields map[string]any, meta map[string]string) (string, error) {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	var b strings.Builder
	b.WriteString("Classify this business document into exactly one type.\n")
	b.WriteString("Valid types: ")
	for i, t := range documents.DocTypes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(t))
	}
	b.WriteString(".\n")
	b.WriteString(`Respond with JSON: {"doc_type": "...", "confidence": 0.0}.` + "\n")
	fmt.Fprintf(&b, "Extracted fields: %s\n", fieldsJSON)
	fmt.Fprintf(&b, "Source metadata: %s\n", metaJSON)

	return b.String(), nil
}
