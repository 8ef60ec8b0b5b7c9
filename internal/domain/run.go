// Package domain defines the core types shared across the visibility service.
package domain

import (
	"time"

	"github.com/lib/pq"
)

// RunStatus represents the lifecycle state of a visibility run.
type RunStatus string

const (
	// RunStatusQueued means the run is waiting to be claimed by a worker.
	RunStatusQueued RunStatus = "queued"
	// RunStatusRunning means a worker has claimed the run and is executing it.
	RunStatusRunning RunStatus = "running"
	// RunStatusSuccess means the run completed and scores were persisted.
	RunStatusSuccess RunStatus = "success"
	// RunStatusError means the run was finalized with a failure reason.
	RunStatusError RunStatus = "error"
)

// IsTerminal reports whether the status is a terminal state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSuccess || s == RunStatusError
}

// Run is one execution attempt of the visibility pipeline for a domain
// across a set of assistant sources. Runs are never deleted; terminal runs
// are immutable except for score backfill.
type Run struct {
	ID           string         `db:"id"`
	ProjectID    string         `db:"project_id"`
	AuditID      string         `db:"audit_id"`
	Domain       string         `db:"domain"`
	Hostname     string         `db:"hostname"`
	ETLD1        string         `db:"etld1"`
	Sources      pq.StringArray `db:"sources"`
	Status       RunStatus      `db:"status"`
	IntentCount  int            `db:"intent_count"`
	Score        float64        `db:"score"`
	Coverage     float64        `db:"coverage"`
	ErrorMessage *string        `db:"error_message"`
	CreatedAt    time.Time      `db:"created_at"`
	StartedAt    *time.Time     `db:"started_at"`
	FinishedAt   *time.Time     `db:"finished_at"`
}

// RunStats aggregates run counts over a trailing window, served by the
// health endpoint.
type RunStats struct {
	Total       int64   `db:"total" json:"total"`
	Queued      int64   `db:"queued" json:"queued"`
	Running     int64   `db:"running" json:"running"`
	Succeeded   int64   `db:"succeeded" json:"succeeded"`
	Failed      int64   `db:"failed" json:"failed"`
	SuccessRate float64 `db:"-" json:"success_rate"`
}
