// Package llm provides the tutor's language-model backend and conditions
// its replies on the learner's cognitive state.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrModelNotFound is returned when the backend doesn't serve the
// configured model.
var ErrModelNotFound = errors.New("model not found")

// Client handles communication with an LLM backend.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Config holds LLM client configuration.
type Config struct {
	BaseURL string        // Ollama API URL (default: http://localhost:11434)
	Model   string        // Model name (default: mistral:7b-instruct)
	Timeout time.Duration // Request timeout (default: 60s)
}

// DefaultConfig returns sensible defaults for local Ollama.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:11434",
		Model:   "mistral:7b-instruct",
		Timeout: 60 * time.Second,
	}
}

// NewClient creates a new LLM client.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Options are per-request sampling parameters. Zero values leave the
// model's defaults in place.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ollamaRequest is the request format for Ollama's /api/generate endpoint.
type ollamaRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *Options `json:"options,omitempty"`
}

// ollamaResponse is the response format from Ollama's /api/generate endpoint.
type ollamaResponse struct {
	Model      string `json:"model"`
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
}

// Generate sends a prompt to the LLM and returns the response.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	reqBody := ollamaRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	}
	if opts != (Options{}) {
		reqBody.Options = &opts
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return strings.TrimSpace(result.Response), nil
}

// tagsResponse is the response format from Ollama's /api/tags endpoint.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Ping checks if the LLM backend is available.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.tags(ctx)
	return err
}

// CheckModel verifies the configured model is available and returns available models if not.
func (c *Client) CheckModel(ctx context.Context) (bool, []string, error) {
	tags, err := c.tags(ctx)
	if err != nil {
		return false, nil, err
	}

	var available []string
	found := false
	for _, m := range tags.Models {
		available = append(available, m.Name)
		if m.Name == c.model {
			found = true
		}
	}

	return found, available, nil
}

// EnsureModel returns ErrModelNotFound, listing what is available, when
// the configured model isn't served.
func (c *Client) EnsureModel(ctx context.Context) error {
	found, available, err := c.CheckModel(ctx)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s (available: %s)", ErrModelNotFound, c.model, strings.Join(available, ", "))
	}
	return nil
}

func (c *Client) tags(ctx context.Context) (tagsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return tagsResponse{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tagsResponse{}, fmt.Errorf("connecting to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tagsResponse{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return tagsResponse{}, fmt.Errorf("decoding response: %w", err)
	}
	return tags, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}
