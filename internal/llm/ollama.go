package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// DefaultOllamaConfig returns sensible defaults for a local Ollama daemon.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL:     "http://localhost:11434",
		Model:       "llama3:latest",
		Timeout:     5 * time.Minute,
		Temperature: 0.7,
	}
}

// OllamaClient implements Client against the Ollama /api/generate endpoint.
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	logger      *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(config OllamaConfig, logger *zap.Logger) *OllamaClient {
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "llama3:latest"
	}
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OllamaClient{
		baseURL:     baseURL,
		model:       model,
		temperature: config.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.Named("ollama"),
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Complete sends a prompt using the client's default temperature.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithTemperature(ctx, prompt, c.temperature)
}

// CompleteWithTemperature sends a prompt sampled at the given temperature.
func (c *OllamaClient) CompleteWithTemperature(ctx context.Context, prompt string, temperature float64) (string, error) {
	// Auto-apply timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	c.logger.Debug("sending completion request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", temperature))

	// Rate limiting: at most one request per 100ms
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := ollamaRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: ollamaOptions{Temperature: temperature},
	}

	url := c.baseURL + "/api/generate"

	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			}
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var ollamaResp ollamaResponse
		if err := json.Unmarshal(body, &ollamaResp); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}

		if ollamaResp.Error != "" {
			return "", fmt.Errorf("API error: %s", ollamaResp.Error)
		}

		result := strings.TrimSpace(ollamaResp.Response)
		c.logger.Debug("completion finished",
			zap.Duration("elapsed", time.Since(startTime)),
			zap.Int("response_len", len(result)))
		return result, nil
	}

	c.logger.Error("max retries exceeded",
		zap.Duration("elapsed", time.Since(startTime)),
		zap.Error(lastErr))
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}
