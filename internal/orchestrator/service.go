package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jonesrussell/north-cloud/visibility/internal/config"
	"github.com/jonesrussell/north-cloud/visibility/internal/connectors"
	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
	"github.com/jonesrussell/north-cloud/visibility/internal/domainutil"
	"github.com/jonesrussell/north-cloud/visibility/internal/intent"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
	"github.com/jonesrussell/north-cloud/visibility/internal/telemetry"
)

// defaultSources are requested when the caller doesn't name any. Disabled
// providers among them are skipped at execution time.
var defaultSources = []string{
	connectors.SourcePerplexity,
	connectors.SourceClaude,
	connectors.SourceGemini,
}

// RunCreatorStore is the run persistence surface for run creation.
type RunCreatorStore interface {
	Create(ctx context.Context, run *domain.Run) error
	FindRecentCompleted(ctx context.Context, projectID, hostname string, window time.Duration) (*domain.Run, error)
}

// IntentAdminStore manages the persisted intent set.
type IntentAdminStore interface {
	CountByDomain(ctx context.Context, projectID, hostname string) (int, error)
	ReplaceForDomain(ctx context.Context, projectID, hostname string, intents []domain.Intent) error
	ListByDomain(ctx context.Context, projectID, hostname string, limit int) ([]domain.Intent, error)
}

// SiteFetcher pulls homepage metadata for intent seeding.
type SiteFetcher interface {
	Fetch(ctx context.Context, homepageURL string) (*intent.SiteMetadata, error)
}

// RunService creates runs and manages intent generation. Execution itself is
// the worker's job; creation only queues.
type RunService struct {
	runs      RunCreatorStore
	intents   IntentAdminStore
	site      SiteFetcher
	cfg       config.VisibilityConfig
	telemetry *telemetry.Provider
	log       logger.Logger
}

// NewRunService creates a RunService.
func NewRunService(runs RunCreatorStore, intents IntentAdminStore, site SiteFetcher, cfg config.VisibilityConfig, tel *telemetry.Provider, log logger.Logger) *RunService {
	return &RunService{
		runs:      runs,
		intents:   intents,
		site:      site,
		cfg:       cfg,
		telemetry: tel,
		log:       log,
	}
}

// CreateRunRequest is the input for CreateRun.
type CreateRunRequest struct {
	AuditID           string
	ProjectID         string
	Domain            string
	Description       string
	Sources           []string
	MaxIntents        int
	RegenerateIntents bool
}

// CreateRunResponse reports the queued (or reused) run.
type CreateRunResponse struct {
	Run     *domain.Run
	Reused  bool
	Intents int
}

// CreateRun queues a new visibility run. A recent successful run for the
// same project+domain is reused instead, unless intent regeneration was
// requested. The intent set is generated on first use.
func (s *RunService) CreateRun(ctx context.Context, req CreateRunRequest) (*CreateRunResponse, error) {
	normalized, err := domainutil.Normalize(req.Domain)
	if err != nil {
		return nil, err
	}

	if !req.RegenerateIntents {
		if recent, err := s.runs.FindRecentCompleted(ctx, req.ProjectID, normalized.Hostname, s.cfg.RecencyWindow); err == nil {
			s.log.Info("reusing recent completed run",
				logger.String("run_id", recent.ID),
				logger.String("hostname", normalized.Hostname))
			return &CreateRunResponse{Run: recent, Reused: true, Intents: recent.IntentCount}, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	intentCount, err := s.ensureIntents(ctx, req, normalized)
	if err != nil {
		return nil, err
	}

	sources := req.Sources
	if len(sources) == 0 {
		sources = defaultSources
	}

	run := &domain.Run{
		ID:          uuid.NewString(),
		ProjectID:   req.ProjectID,
		AuditID:     req.AuditID,
		Domain:      normalized.AuditedURL,
		Hostname:    normalized.Hostname,
		ETLD1:       normalized.ETLD1,
		Sources:     pq.StringArray(sources),
		IntentCount: intentCount,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	s.log.Info("run queued",
		logger.String("run_id", run.ID),
		logger.String("hostname", run.Hostname),
		logger.Strings("sources", sources),
		logger.Int("intents", intentCount))
	return &CreateRunResponse{Run: run, Intents: intentCount}, nil
}

// ensureIntents generates and persists the intent set when it is missing or
// regeneration was requested, and returns the resulting count.
func (s *RunService) ensureIntents(ctx context.Context, req CreateRunRequest, normalized *domainutil.Normalized) (int, error) {
	count, err := s.intents.CountByDomain(ctx, req.ProjectID, normalized.Hostname)
	if err != nil {
		return 0, err
	}
	if count > 0 && !req.RegenerateIntents {
		return count, nil
	}

	intents, err := s.GenerateIntents(ctx, req.ProjectID, normalized, req.Description, req.MaxIntents)
	if err != nil {
		return 0, err
	}
	return len(intents), nil
}

// GenerateIntents builds and persists a fresh intent set for a domain,
// replacing any previous set. The homepage fetch is best-effort; generation
// falls back to pure templates when it fails.
func (s *RunService) GenerateIntents(ctx context.Context, projectID string, normalized *domainutil.Normalized, description string, maxIntents int) ([]domain.Intent, error) {
	if maxIntents <= 0 || maxIntents > s.cfg.MaxIntents {
		maxIntents = s.cfg.MaxIntents
	}

	var meta *intent.SiteMetadata
	if s.site != nil {
		var err error
		meta, err = s.site.Fetch(ctx, normalized.AuditedURL)
		if err != nil {
			s.log.Warn("homepage fetch failed, generating from templates only",
				logger.String("hostname", normalized.Hostname),
				logger.Error(err))
		}
	}

	intents := intent.Generate(intent.Params{
		ProjectID:   projectID,
		Domain:      normalized.Hostname,
		Meta:        meta,
		Description: description,
		MaxIntents:  maxIntents,
	})
	if len(intents) == 0 {
		return nil, domain.ErrNoIntents
	}

	if err := s.intents.ReplaceForDomain(ctx, projectID, normalized.Hostname, intents); err != nil {
		return nil, fmt.Errorf("persist intents: %w", err)
	}

	s.telemetry.Metrics.IntentsGenerated.Observe(float64(len(intents)))
	s.log.Info("intents generated",
		logger.String("hostname", normalized.Hostname),
		logger.Int("count", len(intents)))
	return intents, nil
}
