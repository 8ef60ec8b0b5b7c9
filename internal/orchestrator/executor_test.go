package orchestrator_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/visibility/internal/citations"
	"github.com/jonesrussell/north-cloud/visibility/internal/config"
	"github.com/jonesrussell/north-cloud/visibility/internal/connectors"
	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
	"github.com/jonesrussell/north-cloud/visibility/internal/orchestrator"
	"github.com/jonesrussell/north-cloud/visibility/internal/telemetry"
)

type fakeRunStore struct {
	mu        sync.Mutex
	successes map[string]bool
	failures  map[string]string
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{successes: map[string]bool{}, failures: map[string]string{}}
}

func (s *fakeRunStore) ClaimNext(context.Context) (*domain.Run, error) {
	return nil, domain.ErrNotFound
}

func (s *fakeRunStore) MarkSuccess(_ context.Context, id string, _, _ float64, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes[id] = true
	return nil
}

func (s *fakeRunStore) MarkError(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = reason
	return nil
}

func (s *fakeRunStore) EvictTimedOut(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

type fakeIntentStore struct {
	intents []domain.Intent
}

func (s *fakeIntentStore) ListByDomain(context.Context, string, string, int) ([]domain.Intent, error) {
	return s.intents, nil
}

type fakeResultStore struct {
	mu      sync.Mutex
	results []domain.Result
	cits    map[string][]domain.Citation
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{cits: map[string][]domain.Citation{}}
}

func (s *fakeResultStore) Save(_ context.Context, result *domain.Result, cits []domain.Citation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, *result)
	s.cits[result.ID] = cits
	return nil
}

func (s *fakeResultStore) bySource(source string) []domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Result
	for _, r := range s.results {
		if r.Source == source {
			out = append(out, r)
		}
	}
	return out
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*connectors.Answer
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*connectors.Answer{}}
}

func (c *fakeCache) key(provider, etld1, query string) string {
	return provider + "|" + etld1 + "|" + query
}

func (c *fakeCache) Get(_ context.Context, provider, etld1, query string) (*connectors.Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[c.key(provider, etld1, query)]
	return a, ok
}

func (c *fakeCache) Set(_ context.Context, provider, etld1, query string, answer *connectors.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(provider, etld1, query)] = answer
}

type stubConnector struct {
	name   string
	answer *connectors.Answer
	err    error
	mu     sync.Mutex
	calls  int
}

func (c *stubConnector) Name() string { return c.name }

func (c *stubConnector) Ask(context.Context, string) (*connectors.Answer, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.answer, nil
}

type stubRegistry struct {
	conns map[string]connectors.Connector
}

func (r *stubRegistry) For(source string) connectors.Connector {
	return r.conns[source]
}

type okTransport struct{}

func (okTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func testValidator() *citations.Validator {
	return citations.NewValidator(logger.NewNop(),
		citations.WithHTTPClient(&http.Client{Transport: okTransport{}}))
}

func testConfig() config.VisibilityConfig {
	return config.VisibilityConfig{
		Enabled:         true,
		RunTimeout:      time.Minute,
		ProviderTimeout: 5 * time.Second,
		ProbeBudget:     5 * time.Second,
		MaxIntents:      100,
		Concurrency:     2,
	}
}

var testTelemetry = telemetry.NewProvider()

func newExecutor(runs *fakeRunStore, intents *fakeIntentStore, results *fakeResultStore, cache *fakeCache, registry *stubRegistry, cfg config.VisibilityConfig) *orchestrator.Executor {
	return orchestrator.NewExecutor(runs, intents, results, cache, registry, testValidator(), cfg, testTelemetry, logger.NewNop())
}

func testRun(sources ...string) *domain.Run {
	now := time.Now()
	return &domain.Run{
		ID:        "run-1",
		ProjectID: "proj-1",
		AuditID:   "audit-1",
		Domain:    "https://example.com",
		Hostname:  "example.com",
		ETLD1:     "example.com",
		Sources:   pq.StringArray(sources),
		Status:    domain.RunStatusRunning,
		StartedAt: &now,
	}
}

func testIntents() []domain.Intent {
	return []domain.Intent{
		{ID: "i1", ProjectID: "proj-1", Domain: "example.com", Query: "what is example", IntentType: domain.IntentBrand, Weight: 1.3},
		{ID: "i2", ProjectID: "proj-1", Domain: "example.com", Query: "example reviews", IntentType: domain.IntentBrand, Weight: 1.3},
	}
}

func TestExecuteDisabledSourceSkipped(t *testing.T) {
	runs := newFakeRunStore()
	results := newFakeResultStore()
	registry := &stubRegistry{conns: map[string]connectors.Connector{
		"perplexity": &stubConnector{
			name:   "perplexity",
			answer: &connectors.Answer{Text: "See https://example.com/a for details."},
		},
		// claude is absent: feature-disabled.
	}}

	exec := newExecutor(runs, &fakeIntentStore{intents: testIntents()}, results, newFakeCache(), registry, testConfig())
	exec.Execute(context.Background(), testRun("perplexity", "claude"))

	assert.True(t, runs.successes["run-1"], "run reaches success despite the disabled source")
	assert.Len(t, results.bySource("perplexity"), 2)
	assert.Empty(t, results.bySource("claude"))
}

func TestExecuteGuardDisabledFeature(t *testing.T) {
	runs := newFakeRunStore()
	cfg := testConfig()
	cfg.Enabled = false

	exec := newExecutor(runs, &fakeIntentStore{intents: testIntents()}, newFakeResultStore(), newFakeCache(), &stubRegistry{}, cfg)
	exec.Execute(context.Background(), testRun("perplexity"))

	assert.False(t, runs.successes["run-1"])
	assert.Contains(t, runs.failures["run-1"], "disabled")
}

func TestExecuteGuardProjectNotAllowed(t *testing.T) {
	runs := newFakeRunStore()
	cfg := testConfig()
	cfg.AllowedProjects = []string{"someone-else"}

	exec := newExecutor(runs, &fakeIntentStore{intents: testIntents()}, newFakeResultStore(), newFakeCache(), &stubRegistry{}, cfg)
	exec.Execute(context.Background(), testRun("perplexity"))

	assert.Contains(t, runs.failures["run-1"], "not allow-listed")
}

func TestExecuteNoIntentsIsError(t *testing.T) {
	runs := newFakeRunStore()

	exec := newExecutor(runs, &fakeIntentStore{}, newFakeResultStore(), newFakeCache(), &stubRegistry{}, testConfig())
	exec.Execute(context.Background(), testRun("perplexity"))

	assert.Contains(t, runs.failures["run-1"], "no prompts")
}

func TestExecuteProviderFailureYieldsEmptyResult(t *testing.T) {
	runs := newFakeRunStore()
	results := newFakeResultStore()
	registry := &stubRegistry{conns: map[string]connectors.Connector{
		"perplexity": &stubConnector{name: "perplexity", err: errors.New("upstream exploded")},
	}}

	exec := newExecutor(runs, &fakeIntentStore{intents: testIntents()}, results, newFakeCache(), registry, testConfig())
	exec.Execute(context.Background(), testRun("perplexity"))

	assert.True(t, runs.successes["run-1"], "provider failures never abort the run")
	saved := results.bySource("perplexity")
	require.Len(t, saved, 2)
	for _, r := range saved {
		assert.Empty(t, r.Answer)
		assert.Zero(t, r.VisibilityScore)
		assert.Contains(t, r.Raw, "upstream exploded")
	}
}

func TestExecuteMarksAuditedCitations(t *testing.T) {
	runs := newFakeRunStore()
	results := newFakeResultStore()
	registry := &stubRegistry{conns: map[string]connectors.Connector{
		"perplexity": &stubConnector{
			name: "perplexity",
			answer: &connectors.Answer{
				Text: "- Example Pricing — https://example.com/pricing\n- Rival — https://rival.com/x",
			},
		},
	}}

	exec := newExecutor(runs, &fakeIntentStore{intents: testIntents()[:1]}, results, newFakeCache(), registry, testConfig())
	exec.Execute(context.Background(), testRun("perplexity"))

	saved := results.bySource("perplexity")
	require.Len(t, saved, 1)
	assert.Equal(t, 90.0, saved[0].VisibilityScore)

	cits := results.cits[saved[0].ID]
	require.Len(t, cits, 2)
	assert.True(t, cits[0].IsAuditedDomain)
	assert.False(t, cits[1].IsAuditedDomain)
}

func TestExecuteUsesCache(t *testing.T) {
	runs := newFakeRunStore()
	results := newFakeResultStore()
	cache := newFakeCache()
	cache.Set(context.Background(), "perplexity", "example.com", "what is example",
		&connectors.Answer{Text: "cached answer"})

	conn := &stubConnector{name: "perplexity", answer: &connectors.Answer{Text: "fresh answer"}}
	registry := &stubRegistry{conns: map[string]connectors.Connector{"perplexity": conn}}

	exec := newExecutor(runs, &fakeIntentStore{intents: testIntents()[:1]}, results, cache, registry, testConfig())
	exec.Execute(context.Background(), testRun("perplexity"))

	saved := results.bySource("perplexity")
	require.Len(t, saved, 1)
	assert.True(t, saved[0].Cached)
	assert.Equal(t, "cached answer", saved[0].Answer)
	assert.Zero(t, conn.calls, "cache hit must not call the provider")
}
