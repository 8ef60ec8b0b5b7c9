// Package orchestrator drives the visibility run state machine: claiming
// queued runs, executing intents across assistant sources, and finalizing
// run scores.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/north-cloud/visibility/internal/citations"
	"github.com/jonesrussell/north-cloud/visibility/internal/config"
	"github.com/jonesrussell/north-cloud/visibility/internal/connectors"
	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
	"github.com/jonesrussell/north-cloud/visibility/internal/domainutil"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
	"github.com/jonesrussell/north-cloud/visibility/internal/scoring"
	"github.com/jonesrussell/north-cloud/visibility/internal/telemetry"
)

// RunStore is the run persistence surface the executor needs.
type RunStore interface {
	ClaimNext(ctx context.Context) (*domain.Run, error)
	MarkSuccess(ctx context.Context, id string, score, coverage float64, intentCount int) error
	MarkError(ctx context.Context, id, reason string) error
	EvictTimedOut(ctx context.Context, ceiling time.Duration) (int64, error)
}

// IntentStore lists the persisted intent set for a domain.
type IntentStore interface {
	ListByDomain(ctx context.Context, projectID, hostname string, limit int) ([]domain.Intent, error)
}

// ResultStore persists one result with its citations.
type ResultStore interface {
	Save(ctx context.Context, result *domain.Result, citations []domain.Citation) error
}

// AnswerCache is the best-effort connector answer cache.
type AnswerCache interface {
	Get(ctx context.Context, provider, etld1, query string) (*connectors.Answer, bool)
	Set(ctx context.Context, provider, etld1, query string, answer *connectors.Answer)
}

// Registry resolves provider names to connectors.
type Registry interface {
	For(source string) connectors.Connector
}

// Executor runs one claimed visibility run to a terminal state.
type Executor struct {
	runs      RunStore
	intents   IntentStore
	results   ResultStore
	cache     AnswerCache
	registry  Registry
	validator *citations.Validator
	cfg       config.VisibilityConfig
	telemetry *telemetry.Provider
	log       logger.Logger
	now       func() time.Time
}

// NewExecutor creates an Executor.
func NewExecutor(
	runs RunStore,
	intents IntentStore,
	results ResultStore,
	answerCache AnswerCache,
	registry Registry,
	validator *citations.Validator,
	cfg config.VisibilityConfig,
	tel *telemetry.Provider,
	log logger.Logger,
) *Executor {
	return &Executor{
		runs:      runs,
		intents:   intents,
		results:   results,
		cache:     answerCache,
		registry:  registry,
		validator: validator,
		cfg:       cfg,
		telemetry: tel,
		log:       log,
		now:       time.Now,
	}
}

// Execute drives a claimed run to success or error. A single (intent,
// source) failure never aborts the run; guard failures and an empty intent
// set finalize it as error.
func (e *Executor) Execute(ctx context.Context, run *domain.Run) {
	ctx, span := e.telemetry.Tracer.Start(ctx, "run.execute",
		trace.WithAttributes(
			attribute.String("run_id", run.ID),
			attribute.String("hostname", run.Hostname),
		))
	defer span.End()

	started := e.now()

	if reason := e.guard(run); reason != "" {
		e.finalizeError(ctx, run.ID, reason)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RunTimeout)
	defer cancel()

	intents, err := e.intents.ListByDomain(ctx, run.ProjectID, run.Hostname, e.cfg.MaxIntents)
	if err != nil {
		e.finalizeError(ctx, run.ID, fmt.Sprintf("load intents: %v", err))
		return
	}
	if len(intents) == 0 {
		e.finalizeError(ctx, run.ID, "no prompts generated for domain")
		return
	}

	aliases := domainutil.DeriveAliases(run.Hostname, "")
	scores := e.executePairs(ctx, run, intents, aliases)

	startedAt := started
	if run.StartedAt != nil {
		startedAt = *run.StartedAt
	}
	summary := scoring.Aggregate(scores, startedAt, e.now())

	if err := e.runs.MarkSuccess(ctx, run.ID, summary.Score, summary.Coverage, len(intents)); err != nil {
		// The eviction sweep may have finalized the run under us.
		e.log.Error("failed to finalize run",
			logger.String("run_id", run.ID), logger.Error(err))
		return
	}

	e.telemetry.Metrics.RunsSucceeded.Inc()
	e.telemetry.Metrics.RunDuration.Observe(e.now().Sub(started).Seconds())
	e.log.Info("run completed",
		logger.String("run_id", run.ID),
		logger.String("hostname", run.Hostname),
		logger.Float64("score", summary.Score),
		logger.Float64("coverage", summary.Coverage),
		logger.Int("intents", len(intents)))
}

// guard returns a finalization reason when the run must not execute.
func (e *Executor) guard(run *domain.Run) string {
	if !e.cfg.Enabled {
		return domain.ErrFeatureDisabled.Error()
	}
	if !e.cfg.ProjectAllowed(run.ProjectID) {
		return fmt.Sprintf("project %s is not allow-listed", run.ProjectID)
	}
	return ""
}

// executePairs fans intents × sources out over a bounded worker pool and
// returns the per-intent scores with their weights.
func (e *Executor) executePairs(ctx context.Context, run *domain.Run, intents []domain.Intent, aliases []string) []scoring.IntentScore {
	var (
		mu     sync.Mutex
		scores []scoring.IntentScore
		sem    = make(chan struct{}, e.cfg.Concurrency)
		wg     sync.WaitGroup
	)

	for _, source := range run.Sources {
		conn := e.registry.For(source)
		if conn == nil {
			// Disabled or unknown provider: skip the source, not the run.
			e.log.Warn("skipping unavailable source",
				logger.String("run_id", run.ID), logger.String("source", source))
			continue
		}

		for i := range intents {
			intent := intents[i]
			wg.Add(1)
			go func(conn connectors.Connector) {
				defer wg.Done()
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					return
				}

				e.telemetry.Metrics.ActivePairs.Inc()
				defer e.telemetry.Metrics.ActivePairs.Dec()

				score, ok := e.executePair(ctx, run, &intent, conn, aliases)
				if !ok {
					return
				}
				mu.Lock()
				scores = append(scores, scoring.IntentScore{Score: score, Weight: intent.Weight})
				mu.Unlock()
			}(conn)
		}
	}
	wg.Wait()
	return scores
}

// executePair runs one (intent, source) pair: cache lookup, connector call,
// extraction, validation, audited marking, scoring, persistence. Returns
// (score, true) when a result was persisted.
func (e *Executor) executePair(ctx context.Context, run *domain.Run, intent *domain.Intent, conn connectors.Connector, aliases []string) (float64, bool) {
	provider := conn.Name()
	answer, cached := e.cache.Get(ctx, provider, run.ETLD1, intent.Query)
	if cached {
		e.telemetry.Metrics.CacheHits.WithLabelValues(provider).Inc()
	} else {
		e.telemetry.Metrics.CacheMisses.WithLabelValues(provider).Inc()
		answer = e.ask(ctx, provider, conn, intent.Query)
		if answer.Text != "" || len(answer.Sources) > 0 {
			e.cache.Set(ctx, provider, run.ETLD1, intent.Query, answer)
		}
	}

	extracted := citations.Extract(answer.Text, answer.Sources)
	e.telemetry.Metrics.CitationsExtracted.WithLabelValues(provider).Add(float64(len(extracted)))

	before := len(extracted)
	extracted = e.validator.FilterReachable(ctx, extracted, run.Hostname, aliases)
	if dropped := before - len(extracted); dropped > 0 {
		e.telemetry.Metrics.CitationsDropped.Add(float64(dropped))
	}

	resultID := uuid.NewString()
	cits := make([]domain.Citation, 0, len(extracted))
	for _, c := range extracted {
		var snippet *string
		if c.Snippet != "" {
			s := c.Snippet
			snippet = &s
		}
		cits = append(cits, domain.Citation{
			ID:              uuid.NewString(),
			ResultID:        resultID,
			Rank:            c.Rank,
			RefURL:          c.RefURL,
			RefDomain:       c.RefDomain,
			Title:           c.Title,
			Snippet:         snippet,
			IsAuditedDomain: domainutil.IsAuditedURL(c.RefURL, run.Hostname, aliases),
		})
	}

	score := scoring.CalculateIntentScore(cits, nil)
	result := &domain.Result{
		ID:              resultID,
		RunID:           run.ID,
		IntentID:        intent.ID,
		Source:          provider,
		Query:           intent.Query,
		Answer:          answer.Text,
		Raw:             answer.Raw,
		VisibilityScore: score,
		Cached:          cached,
	}

	if err := e.results.Save(ctx, result, cits); err != nil {
		e.log.Error("failed to persist result",
			logger.String("run_id", run.ID),
			logger.String("intent_id", intent.ID),
			logger.String("source", provider),
			logger.Error(err))
		return 0, false
	}
	return score, true
}

// ask calls the connector with the provider timeout. Failures come back as
// an empty answer carrying the error payload, so the pair still produces a
// zero-citation result instead of aborting anything.
func (e *Executor) ask(ctx context.Context, provider string, conn connectors.Connector, query string) *connectors.Answer {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ProviderTimeout)
	defer cancel()

	e.telemetry.Metrics.ProviderCalls.WithLabelValues(provider).Inc()
	started := e.now()

	answer, err := conn.Ask(callCtx, query)
	e.telemetry.Metrics.ProviderDuration.WithLabelValues(provider).Observe(e.now().Sub(started).Seconds())
	if err != nil {
		e.telemetry.Metrics.ProviderFailures.WithLabelValues(provider).Inc()
		e.log.Warn("provider call failed",
			logger.String("provider", provider),
			logger.Error(err))
		return &connectors.Answer{Raw: err.Error()}
	}
	return answer
}

func (e *Executor) finalizeError(ctx context.Context, runID, reason string) {
	if err := e.runs.MarkError(ctx, runID, reason); err != nil {
		e.log.Error("failed to mark run as error",
			logger.String("run_id", runID),
			logger.String("reason", reason),
			logger.Error(err))
		return
	}
	e.telemetry.Metrics.RunsFailed.WithLabelValues(failureReason(reason)).Inc()
	e.log.Warn("run finalized as error",
		logger.String("run_id", runID),
		logger.String("reason", reason))
}

// failureReason maps free-text reasons onto a low-cardinality metric label.
func failureReason(reason string) string {
	switch {
	case reason == domain.ErrRunTimeout.Error():
		return "timeout"
	case reason == "no prompts generated for domain":
		return "no_prompts"
	case reason == domain.ErrFeatureDisabled.Error():
		return "disabled"
	default:
		return "other"
	}
}
