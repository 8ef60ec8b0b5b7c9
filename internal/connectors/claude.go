package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/visibility/internal/config"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
	"github.com/jonesrussell/north-cloud/visibility/internal/retry"
)

const claudeMaxTokens = 1024

// Claude calls the Anthropic Messages API. Claude has no built-in web
// citations, so sources come from the bulleted sources block the prompt
// asks for, parsed downstream by the extractor.
type Claude struct {
	client  anthropic.Client
	model   string
	limiter *rate.Limiter
	log     logger.Logger
}

// NewClaude creates a Claude connector.
func NewClaude(cfg config.ProviderConfig, log logger.Logger) *Claude {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Claude{
		client:  anthropic.NewClient(opts...),
		model:   cfg.Model,
		limiter: newLimiter(cfg.RPS),
		log:     log,
	}
}

// Name returns the provider identifier.
func (c *Claude) Name() string { return SourceClaude }

// Ask sends the query to the Messages API.
func (c *Claude) Ask(ctx context.Context, query string) (*Answer, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("claude rate limit wait: %w", err)
	}

	var msg *anthropic.Message
	err := retry.RetryWithDefaults(ctx, func() error {
		var callErr error
		msg, callErr = c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: claudeMaxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(answerPrompt(query))),
			},
		})
		if callErr != nil {
			return fmt.Errorf("claude request: %w", callErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		raw = []byte("{}")
	}

	return &Answer{
		Text: text.String(),
		Raw:  string(raw),
	}, nil
}
