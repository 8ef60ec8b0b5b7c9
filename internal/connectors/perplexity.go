package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/visibility/internal/citations"
	"github.com/jonesrussell/north-cloud/visibility/internal/config"
	"github.com/jonesrussell/north-cloud/visibility/internal/httpclient"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
	"github.com/jonesrussell/north-cloud/visibility/internal/retry"
)

const defaultPerplexityBaseURL = "https://api.perplexity.ai"

// Perplexity calls the Perplexity chat-completions API. Responses carry a
// citations array alongside the answer text, which maps straight onto
// structured sources.
type Perplexity struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	limiter *rate.Limiter
	log     logger.Logger
}

// NewPerplexity creates a Perplexity connector.
func NewPerplexity(cfg config.ProviderConfig, log logger.Logger) *Perplexity {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultPerplexityBaseURL
	}
	return &Perplexity{
		client:  httpclient.New(nil),
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		limiter: newLimiter(cfg.RPS),
		log:     log,
	}
}

// Name returns the provider identifier.
func (p *Perplexity) Name() string { return SourcePerplexity }

type perplexityRequest struct {
	Model    string              `json:"model"`
	Messages []perplexityMessage `json:"messages"`
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations     []string `json:"citations"`
	SearchResults []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"search_results"`
}

// Ask sends the query to the chat-completions endpoint.
func (p *Perplexity) Ask(ctx context.Context, query string) (*Answer, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("perplexity rate limit wait: %w", err)
	}

	reqBody := perplexityRequest{
		Model: p.model,
		Messages: []perplexityMessage{
			{Role: "user", Content: answerPrompt(query)},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal perplexity request: %w", err)
	}

	var answer *Answer
	err = retry.RetryWithDefaults(ctx, func() error {
		answer, err = p.doRequest(ctx, payload)
		return err
	})
	if err != nil {
		return nil, err
	}
	return answer, nil
}

func (p *Perplexity) doRequest(ctx context.Context, payload []byte) (*Answer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create perplexity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perplexity request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read perplexity response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("perplexity returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed perplexityResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode perplexity response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("perplexity returned no choices")
	}

	answer := &Answer{
		Text: parsed.Choices[0].Message.Content,
		Raw:  string(body),
	}
	for _, sr := range parsed.SearchResults {
		answer.Sources = append(answer.Sources, citations.Source{URL: sr.URL, Title: sr.Title})
	}
	// The flat citations array has no titles; extraction synthesizes them.
	if len(answer.Sources) == 0 {
		for _, u := range parsed.Citations {
			answer.Sources = append(answer.Sources, citations.Source{URL: u})
		}
	}
	return answer, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
