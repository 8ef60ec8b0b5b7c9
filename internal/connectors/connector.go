// Package connectors wraps the AI assistant providers behind a single
// Ask contract so the run engine treats every assistant the same way.
package connectors

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/visibility/internal/citations"
	"github.com/jonesrussell/north-cloud/visibility/internal/config"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
)

// Provider identifiers as stored on runs and results.
const (
	SourcePerplexity = "perplexity"
	SourceClaude     = "claude"
	SourceGemini     = "gemini"
)

// Answer is a provider response: the answer text, any structured sources the
// provider surfaced, and the raw response for provenance.
type Answer struct {
	Text    string
	Sources []citations.Source
	Raw     string
}

// Connector asks one assistant a single query.
type Connector interface {
	// Name returns the provider identifier.
	Name() string
	// Ask sends the query and returns the assistant's answer.
	Ask(ctx context.Context, query string) (*Answer, error)
}

// Registry holds the enabled connectors keyed by provider name.
type Registry struct {
	connectors map[string]Connector
	log        logger.Logger
}

// NewRegistry builds connectors for every enabled provider. Disabled
// providers are simply absent; callers discover that through For.
func NewRegistry(ctx context.Context, cfg config.ProvidersConfig, log logger.Logger) (*Registry, error) {
	r := &Registry{
		connectors: make(map[string]Connector),
		log:        log,
	}

	if cfg.Perplexity.Enabled {
		r.connectors[SourcePerplexity] = NewPerplexity(cfg.Perplexity, log)
	}
	if cfg.Claude.Enabled {
		r.connectors[SourceClaude] = NewClaude(cfg.Claude, log)
	}
	if cfg.Gemini.Enabled {
		c, err := NewGemini(ctx, cfg.Gemini, log)
		if err != nil {
			return nil, fmt.Errorf("init gemini connector: %w", err)
		}
		r.connectors[SourceGemini] = c
	}

	return r, nil
}

// For returns the connector for a provider, or nil when the provider is
// disabled or unknown. Callers must treat nil as "skip this source".
func (r *Registry) For(source string) Connector {
	return r.connectors[strings.ToLower(strings.TrimSpace(source))]
}

// Enabled returns the enabled provider names in stable order.
func (r *Registry) Enabled() []string {
	var out []string
	for _, name := range []string{SourcePerplexity, SourceClaude, SourceGemini} {
		if _, ok := r.connectors[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// newLimiter builds a per-provider rate limiter from the configured RPS.
func newLimiter(rps int) *rate.Limiter {
	if rps <= 0 {
		rps = 1
	}
	return rate.NewLimiter(rate.Limit(rps), rps)
}

// answerPrompt instructs the assistant to answer naturally and then list the
// sources it relied on in a parseable bulleted form.
func answerPrompt(query string) string {
	return query + "\n\n" +
		"After your answer, list the web sources you relied on under a final\n" +
		"\"Sources:\" heading, one per line, in the form:\n" +
		"- Page Title — https://example.com/page"
}
