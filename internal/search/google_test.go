package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func itemsJSON(t *testing.T, start, n int) []byte {
	t.Helper()
	type item struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	}
	var items []item
	for i := 0; i < n; i++ {
		items = append(items, item{
			Title:   fmt.Sprintf("result %d", start+i),
			Link:    fmt.Sprintf("https://example.com/%d", start+i),
			Snippet: "snippet",
		})
	}
	body, err := json.Marshal(map[string]any{"items": items})
	require.NoError(t, err)
	return body
}

func newClient(srvURL string, maxResults int) *GoogleClient {
	c := NewGoogleClient(GoogleConfig{
		APIKey:     "test-key",
		EngineID:   "test-cx",
		MaxResults: maxResults,
	}, zap.NewNop())
	c.SetBaseURL(srvURL)
	return c
}

func TestGoogleClientSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches two pages", func(t *testing.T) {
		var starts []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))
			assert.Equal(t, "test-cx", r.URL.Query().Get("cx"))
			assert.Equal(t, "tea facts", r.URL.Query().Get("q"))
			assert.Equal(t, "10", r.URL.Query().Get("num"))
			start := r.URL.Query().Get("start")
			starts = append(starts, start)
			if start == "1" {
				w.Write(itemsJSON(t, 1, 10))
			} else {
				w.Write(itemsJSON(t, 11, 10))
			}
		}))
		defer srv.Close()

		results, err := newClient(srv.URL, 20).Search(ctx, "tea facts")
		require.NoError(t, err)
		assert.Len(t, results, 20)
		assert.Equal(t, []string{"1", "11"}, starts)
		assert.Equal(t, "https://example.com/1", results[0].Link)
		assert.Equal(t, "https://example.com/20", results[19].Link)
	})

	t.Run("caps at max results", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(itemsJSON(t, 1, 10))
		}))
		defer srv.Close()

		results, err := newClient(srv.URL, 5).Search(ctx, "q")
		require.NoError(t, err)
		assert.Len(t, results, 5)
	})

	t.Run("first page failure is fatal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := newClient(srv.URL, 20).Search(ctx, "q")
		assert.Error(t, err)
	})

	t.Run("second page failure keeps first page", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("start") == "1" {
				w.Write(itemsJSON(t, 1, 10))
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		results, err := newClient(srv.URL, 20).Search(ctx, "q")
		require.NoError(t, err)
		assert.Len(t, results, 10)
	})

	t.Run("in-body API error is surfaced", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error": {"code": 403, "message": "quota exceeded"}}`))
		}))
		defer srv.Close()

		_, err := newClient(srv.URL, 20).Search(ctx, "q")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("items without links are dropped", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("start") == "1" {
				w.Write([]byte(`{"items": [{"title": "no link"}, {"title": "ok", "link": "https://example.com/a"}]}`))
				return
			}
			w.Write([]byte(`{"items": []}`))
		}))
		defer srv.Close()

		results, err := newClient(srv.URL, 20).Search(ctx, "q")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "https://example.com/a", results[0].Link)
	})

	t.Run("missing credentials fail fast", func(t *testing.T) {
		c := NewGoogleClient(GoogleConfig{}, zap.NewNop())
		_, err := c.Search(ctx, "q")
		assert.Error(t, err)
	})
}
