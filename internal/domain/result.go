package domain

import "time"

// Result is one (run, intent, source) execution. The raw provider payload is
// kept for later inspection; the visibility score is written once by the
// scoring engine after citations are persisted.
type Result struct {
	ID              string    `db:"id"`
	RunID           string    `db:"run_id"`
	IntentID        string    `db:"intent_id"`
	Source          string    `db:"source"`
	Query           string    `db:"query"`
	Answer          string    `db:"answer"`
	Raw             string    `db:"raw"`
	VisibilityScore float64   `db:"visibility_score"`
	Cached          bool      `db:"cached"`
	CreatedAt       time.Time `db:"created_at"`
}

// Citation is one extracted URL within a Result. Immutable once written.
type Citation struct {
	ID              string    `db:"id"`
	ResultID        string    `db:"result_id"`
	Rank            int       `db:"rank"`
	RefURL          string    `db:"ref_url"`
	RefDomain       string    `db:"ref_domain"`
	Title           string    `db:"title"`
	Snippet         *string   `db:"snippet"`
	IsAuditedDomain bool      `db:"is_audited_domain"`
	CreatedAt       time.Time `db:"created_at"`
}
