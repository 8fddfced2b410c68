// Package search queries the Google Custom Search JSON API for pages about a
// game subject.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Provider returns search results for a query.
type Provider interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// GoogleConfig configures a GoogleClient.
type GoogleConfig struct {
	APIKey     string
	EngineID   string
	MaxResults int
	Timeout    time.Duration
}

// GoogleClient implements Provider against the Custom Search JSON API.
type GoogleClient struct {
	apiKey     string
	engineID   string
	maxResults int
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGoogleClient creates a new Custom Search client.
func NewGoogleClient(config GoogleConfig, logger *zap.Logger) *GoogleClient {
	maxResults := config.MaxResults
	if maxResults <= 0 || maxResults > 20 {
		maxResults = 20
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GoogleClient{
		apiKey:     config.APIKey,
		engineID:   config.EngineID,
		maxResults: maxResults,
		baseURL:    "https://www.googleapis.com/customsearch/v1",
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("search"),
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *GoogleClient) SetBaseURL(u string) {
	c.baseURL = u
}

type googleSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search fetches up to two result pages (start=1 and start=11) and caps the
// combined list at MaxResults.
func (c *GoogleClient) Search(ctx context.Context, query string) ([]Result, error) {
	if c.apiKey == "" || c.engineID == "" {
		return nil, fmt.Errorf("search API key or engine id not configured")
	}

	c.logger.Info("running search", zap.String("query", query))

	var results []Result
	for _, start := range []int{1, 11} {
		page, err := c.fetchPage(ctx, query, start)
		if err != nil {
			// The first page failing means no results at all; a missing
			// second page is not fatal.
			if start == 1 {
				return nil, err
			}
			c.logger.Warn("second result page failed", zap.Error(err))
			break
		}
		results = append(results, page...)
		if len(results) >= c.maxResults {
			break
		}
	}

	if len(results) > c.maxResults {
		results = results[:c.maxResults]
	}

	c.logger.Info("search finished", zap.Int("results", len(results)))
	return results, nil
}

func (c *GoogleClient) fetchPage(ctx context.Context, query string, start int) ([]Result, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", "10")
	params.Set("start", strconv.Itoa(start))

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var searchResp googleSearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if searchResp.Error != nil {
		return nil, fmt.Errorf("API error %d: %s", searchResp.Error.Code, searchResp.Error.Message)
	}

	results := make([]Result, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, Result{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}
