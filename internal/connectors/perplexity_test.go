package connectors_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/visibility/internal/config"
	"github.com/jonesrussell/north-cloud/visibility/internal/connectors"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
)

func perplexityConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		Enabled: true,
		APIKey:  "test-key",
		Model:   "sonar",
		BaseURL: baseURL,
		RPS:     100,
	}
}

func TestPerplexityAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sonar", req["model"])

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Example.com sells widgets."}},
			},
			"search_results": []map[string]any{
				{"title": "Widget Catalog", "url": "https://example.com/widgets"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := connectors.NewPerplexity(perplexityConfig(srv.URL), logger.NewNop())
	answer, err := c.Ask(context.Background(), "where to buy widgets")

	require.NoError(t, err)
	assert.Equal(t, "Example.com sells widgets.", answer.Text)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "https://example.com/widgets", answer.Sources[0].URL)
	assert.Equal(t, "Widget Catalog", answer.Sources[0].Title)
	assert.NotEmpty(t, answer.Raw)
}

func TestPerplexityAskCitationsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "answer"}},
			},
			"citations": []string{"https://example.com/a", "https://other.org/b"},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := connectors.NewPerplexity(perplexityConfig(srv.URL), logger.NewNop())
	answer, err := c.Ask(context.Background(), "q")

	require.NoError(t, err)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "https://example.com/a", answer.Sources[0].URL)
	assert.Empty(t, answer.Sources[0].Title)
}

func TestPerplexityAskNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid model"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := connectors.NewPerplexity(perplexityConfig(srv.URL), logger.NewNop())
	_, err := c.Ask(context.Background(), "q")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestPerplexityAskRetriesServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "recovered"}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := connectors.NewPerplexity(perplexityConfig(srv.URL), logger.NewNop())
	answer, err := c.Ask(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, "recovered", answer.Text)
	assert.Equal(t, 2, calls)
}

func TestRegistryDisabledProvider(t *testing.T) {
	cfg := config.ProvidersConfig{
		Perplexity: config.ProviderConfig{Enabled: true, APIKey: "k", Model: "sonar", RPS: 1},
		Claude:     config.ProviderConfig{Enabled: false},
		Gemini:     config.ProviderConfig{Enabled: false},
	}

	r, err := connectors.NewRegistry(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)

	assert.NotNil(t, r.For("perplexity"))
	assert.NotNil(t, r.For(" Perplexity "), "lookup is case and whitespace insensitive")
	assert.Nil(t, r.For("claude"), "disabled provider resolves to nil")
	assert.Nil(t, r.For("bing"), "unknown provider resolves to nil")
	assert.Equal(t, []string{"perplexity"}, r.Enabled())
}
