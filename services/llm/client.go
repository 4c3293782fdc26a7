package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clearwatch/clearwatch/models"
	"go.uber.org/zap"
)

// Analyst produces natural-language analysis of detection events. Concrete
// implementations talk to a model server; tests stub this out.
type Analyst interface {
	Available(ctx context.Context) bool
	ExplainEvent(ctx context.Context, event models.Event) (string, error)
	Summarize(ctx context.Context, events []models.Event) (string, error)
}

// OllamaConfig configures the model server connection.
type OllamaConfig struct {
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OllamaClient generates analysis through an Ollama-compatible HTTP API.
type OllamaClient struct {
	cfg    OllamaConfig
	client *http.Client
	logger *zap.Logger
}

// NewOllamaClient creates a client. A zero timeout defaults to 60s, which
// accommodates slow local models.
func NewOllamaClient(cfg OllamaConfig, logger *zap.Logger) *OllamaClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OllamaClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Available probes the server root. Any HTTP 200 means the service is up;
// model readiness is checked implicitly by the first generate call.
func (c *OllamaClient) Available(ctx context.Context) bool {
	probe, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probe, http.MethodHead, c.cfg.BaseURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends one prompt and returns the full completion.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode generate request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("sending prompt to model", zap.String("model", c.cfg.Model))
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach model server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("model server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}
	if decoded.Response == "" {
		return "", fmt.Errorf("model response missing completion text")
	}
	return strings.TrimSpace(decoded.Response), nil
}

// ExplainEvent generates a triage analysis for one event.
func (c *OllamaClient) ExplainEvent(ctx context.Context, event models.Event) (string, error) {
	prompt, err := singleEventPrompt(event)
	if err != nil {
		return "", err
	}
	return c.Generate(ctx, prompt)
}

// Summarize generates an executive report over a window of events.
func (c *OllamaClient) Summarize(ctx context.Context, events []models.Event) (string, error) {
	prompt, err := summaryPrompt(events)
	if err != nil {
		return "", err
	}
	return c.Generate(ctx, prompt)
}

var _ Analyst = (*OllamaClient)(nil)
