package citations

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/visibility/internal/domainutil"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
)

const (
	defaultProbeBudget = 15 * time.Second
	defaultConcurrency = 5
	perProbeTimeout    = 5 * time.Second
)

// blockedButAlive are statuses many sites return to automated probes while
// the page itself is perfectly reachable in a browser.
var blockedButAlive = map[int]bool{
	http.StatusForbidden:        true,
	http.StatusMethodNotAllowed: true,
	http.StatusNotAcceptable:    true,
	http.StatusTooManyRequests:  true,
}

// Validator probes citation URLs for liveness. The bias is deliberately
// fail-open: a transient network error must not drop a real citation, so
// only a definite negative HTTP status rejects a URL.
type Validator struct {
	client      *http.Client
	log         logger.Logger
	budget      time.Duration
	concurrency int
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithBudget sets the total wall-clock budget for one FilterReachable call.
func WithBudget(d time.Duration) ValidatorOption {
	return func(v *Validator) { v.budget = d }
}

// WithConcurrency bounds the number of in-flight probes.
func WithConcurrency(n int) ValidatorOption {
	return func(v *Validator) { v.concurrency = n }
}

// WithHTTPClient overrides the probe client. Used in tests.
func WithHTTPClient(c *http.Client) ValidatorOption {
	return func(v *Validator) { v.client = c }
}

// NewValidator creates a Validator.
func NewValidator(log logger.Logger, opts ...ValidatorOption) *Validator {
	v := &Validator{
		client:      &http.Client{Timeout: perProbeTimeout},
		log:         log,
		budget:      defaultProbeBudget,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// FilterReachable probes each candidate and returns the reachable subset in
// the original order, ranks reassigned. Candidates whose hostname belongs to
// the audited domain or an alias bypass the probe entirely: the audited
// site's own bot defense must not be able to drop its own citations.
func (v *Validator) FilterReachable(ctx context.Context, candidates []Extracted, auditedHost string, aliases []string) []Extracted {
	if len(candidates) == 0 {
		return candidates
	}

	ctx, cancel := context.WithTimeout(ctx, v.budget)
	defer cancel()

	accepted := make([]bool, len(candidates))
	sem := make(chan struct{}, v.concurrency)
	var wg sync.WaitGroup

	for i := range candidates {
		if domainutil.IsAuditedURL(candidates[i].RefURL, auditedHost, aliases) {
			accepted[i] = true
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				// Budget exhausted before this probe started: soft-accept.
				accepted[i] = true
				return
			}
			accepted[i] = v.probe(ctx, candidates[i].RefURL)
		}(i)
	}
	wg.Wait()

	out := make([]Extracted, 0, len(candidates))
	for i, c := range candidates {
		if !accepted[i] {
			v.log.Debug("citation dropped by liveness probe",
				logger.String("url", c.RefURL))
			continue
		}
		c.Rank = len(out) + 1
		out = append(out, c)
	}
	return out
}

// probe issues a HEAD request and decides reachability. Network errors are
// soft-accepted; only definite negative statuses reject.
func (v *Validator) probe(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return true
	}
	req.Header.Set("User-Agent", "north-cloud-visibility/1.0")

	resp, err := v.client.Do(req)
	if err != nil {
		// Timeouts, DNS failures, resets: soft-accept to avoid dropping
		// real citations on transient failures.
		return true
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return true
	}
	return blockedButAlive[resp.StatusCode]
}
