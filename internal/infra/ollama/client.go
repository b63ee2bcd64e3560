package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tg-xpost-bot/internal/infra/metrics"
)

const defaultBaseURL = "http://localhost:11434"

// Client talks to a local Ollama instance.
type Client struct {
	http    *http.Client
	baseURL string
	model   string
}

// NewClient creates an Ollama client.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout + 5*time.Second}
	return &Client{http: httpClient, baseURL: baseURL, model: model}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// Generate calls /api/generate with streaming disabled and returns the
// completed text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}
	endpoint := c.baseURL + "/api/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, err)
		return "", fmt.Errorf("ollama: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, err)
		return "", fmt.Errorf("ollama: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr generateResponse
		if jsonErr := json.Unmarshal(respBody, &apiErr); jsonErr == nil && apiErr.Error != "" {
			err = fmt.Errorf("ollama: %s", apiErr.Error)
		} else {
			err = fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
		}
		metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, err)
		return "", err
	}

	var generated generateResponse
	if err := json.Unmarshal(respBody, &generated); err != nil {
		metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, err)
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, nil)
	metrics.ObserveLLMGeneration(c.model, time.Since(start), generated.PromptEvalCount, generated.EvalCount)
	return generated.Response, nil
}

// Health probes /api/tags, the cheapest liveness endpoint Ollama exposes.
func (c *Client) Health(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	start := time.Now()
	resp, err := c.http.Do(httpReq)
	metrics.ObserveNetworkRequest("ollama", "tags", c.model, start, err)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 400
}
