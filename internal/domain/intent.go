package domain

import (
	"strings"
	"time"
)

// IntentType categorizes a generated query by the information-seeking
// scenario it represents.
type IntentType string

const (
	IntentBrand       IntentType = "brand"
	IntentProduct     IntentType = "product"
	IntentHowTo       IntentType = "how-to"
	IntentComparative IntentType = "comparative"
	IntentLocal       IntentType = "local"
	IntentEvidence    IntentType = "evidence"
	IntentDiscovery   IntentType = "discovery"
	IntentDescription IntentType = "description"
)

// Intent is a single natural-language query scoped to a domain. Intents are
// reusable across runs and read-only after generation; regeneration replaces
// them wholesale.
type Intent struct {
	ID         string     `db:"id"`
	ProjectID  string     `db:"project_id"`
	Domain     string     `db:"domain"`
	Query      string     `db:"query"`
	IntentType IntentType `db:"intent_type"`
	Weight     float64    `db:"weight"`
	SourceHint *string    `db:"source_hint"`
	CreatedAt  time.Time  `db:"created_at"`
}

// NormalizeQuery lowercases and collapses whitespace so that intents can be
// deduplicated case/whitespace-insensitively.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
