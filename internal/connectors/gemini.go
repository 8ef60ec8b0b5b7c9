package connectors

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/jonesrussell/north-cloud/visibility/internal/citations"
	"github.com/jonesrussell/north-cloud/visibility/internal/config"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
	"github.com/jonesrussell/north-cloud/visibility/internal/retry"
)

// Gemini calls the Gemini API with Google Search grounding enabled, so the
// response carries grounding metadata that maps onto structured sources.
type Gemini struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
	log     logger.Logger
}

// NewGemini creates a Gemini connector.
func NewGemini(ctx context.Context, cfg config.ProviderConfig, log logger.Logger) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{
		client:  client,
		model:   cfg.Model,
		limiter: newLimiter(cfg.RPS),
		log:     log,
	}, nil
}

// Name returns the provider identifier.
func (g *Gemini) Name() string { return SourceGemini }

// Ask sends the query with search grounding and maps grounding chunks onto
// structured sources.
func (g *Gemini) Ask(ctx context.Context, query string) (*Answer, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gemini rate limit wait: %w", err)
	}

	var resp *genai.GenerateContentResponse
	err := retry.RetryWithDefaults(ctx, func() error {
		var callErr error
		resp, callErr = g.client.Models.GenerateContent(
			ctx,
			g.model,
			genai.Text(answerPrompt(query)),
			&genai.GenerateContentConfig{
				Tools: []*genai.Tool{
					{GoogleSearch: &genai.GoogleSearch{}},
					{URLContext: &genai.URLContext{}},
				},
				CandidateCount: 1,
			},
		)
		if callErr != nil {
			return fmt.Errorf("gemini request: %w", callErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Answer{
		Text:    resp.Text(),
		Sources: groundingSources(resp),
		Raw:     resp.Text(),
	}, nil
}

// groundingSources pulls cited web pages out of the grounding metadata of the
// first candidate.
func groundingSources(resp *genai.GenerateContentResponse) []citations.Source {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	c := resp.Candidates[0]

	var out []citations.Source
	if c.GroundingMetadata != nil {
		for _, chunk := range c.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			uri := strings.TrimSpace(chunk.Web.URI)
			if uri == "" {
				continue
			}
			out = append(out, citations.Source{
				URL:   uri,
				Title: strings.TrimSpace(chunk.Web.Title),
			})
		}
	}
	if c.URLContextMetadata != nil {
		for _, m := range c.URLContextMetadata.URLMetadata {
			if m == nil {
				continue
			}
			if url := strings.TrimSpace(m.RetrievedURL); url != "" {
				out = append(out, citations.Source{URL: url})
			}
		}
	}
	return out
}
