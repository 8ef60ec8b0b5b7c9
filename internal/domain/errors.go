package domain

import "errors"

// Sentinel errors shared across repositories, the orchestrator, and the API
// layer. Handlers translate these into JSON error responses.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidDomain is returned when a domain or URL cannot be parsed.
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrFeatureDisabled is returned when the visibility feature flag is off.
	ErrFeatureDisabled = errors.New("visibility feature is disabled")

	// ErrDomainMismatch is returned when a resolved run's domain does not
	// match the requesting audit's domain or its aliases. Serving the data
	// anyway would leak another tenant's results, so this aborts the request.
	ErrDomainMismatch = errors.New("run domain does not match audit domain")

	// ErrNoIntents is returned when a run is executed with zero intents.
	ErrNoIntents = errors.New("run has no intents")

	// ErrRunTimeout is recorded on runs evicted past the wall-clock ceiling.
	ErrRunTimeout = errors.New("run exceeded wall-clock timeout")
)
