// Package intent builds the weighted query set that a visibility run asks
// the assistants.
package intent

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
)

// Category weights. Heavier categories matter more to the run-level score.
const (
	weightBrand         = 1.3
	weightProduct       = 1.2
	weightHowTo         = 1.0
	weightComparative   = 1.4
	weightLocal         = 1.1
	weightEvidence      = 1.0
	weightDiscovery     = 1.5
	weightDescPrimary   = 1.4
	weightDescSecondary = 1.3
)

const (
	// DefaultMaxIntents caps the generated set when the caller doesn't.
	DefaultMaxIntents = 100

	maxProductKeywords  = 8
	maxHowToSeeds       = 10
	maxDescKeywords     = 6
	descPrimaryKeywords = 3
)

// Params are the inputs to one generation pass.
type Params struct {
	ProjectID string
	// Domain is the normalized audited hostname.
	Domain string
	// Brand is the brand label, typically the leftmost registrable label.
	Brand string
	// Meta is optional homepage metadata; generation degrades to pure
	// templates without it.
	Meta *SiteMetadata
	// Description is optional free text about the site.
	Description string
	// MaxIntents caps the output; zero means DefaultMaxIntents.
	MaxIntents int
}

// Generate produces the deduplicated, weighted intent set for a domain.
// Output order is deterministic for fixed inputs: categories are emitted in a
// fixed sequence and deduplication keeps the first occurrence.
func Generate(p Params) []domain.Intent {
	maxIntents := p.MaxIntents
	if maxIntents <= 0 {
		maxIntents = DefaultMaxIntents
	}
	if p.Brand == "" {
		p.Brand = brandFromDomain(p.Domain)
	}
	meta := p.Meta
	if meta == nil {
		meta = &SiteMetadata{}
	}
	description := p.Description
	if description == "" {
		description = meta.Description
	}

	g := &generator{
		projectID:  p.ProjectID,
		domain:     p.Domain,
		maxIntents: maxIntents,
		seen:       map[string]bool{},
	}

	for _, tmpl := range brandTemplates {
		g.add(domain.IntentBrand, weightBrand, fmt.Sprintf(tmpl, p.Brand))
	}

	keywords := keywordsFrom(append([]string{meta.Title}, meta.Headings...), maxProductKeywords)
	for _, kw := range keywords {
		for _, tmpl := range productTemplates {
			g.add(domain.IntentProduct, weightProduct, fmt.Sprintf(tmpl, kw))
		}
	}

	for _, seed := range howToSeeds(meta, maxHowToSeeds) {
		g.add(domain.IntentHowTo, weightHowTo, seed)
	}

	for _, tmpl := range comparativeTemplates {
		g.add(domain.IntentComparative, weightComparative, fmt.Sprintf(tmpl, p.Brand))
	}

	for _, loc := range meta.Locations {
		for _, kw := range keywords {
			for _, tmpl := range localTemplates {
				g.add(domain.IntentLocal, weightLocal, fmt.Sprintf(tmpl, kw, loc))
			}
		}
	}

	for _, tmpl := range evidenceTemplates {
		g.add(domain.IntentEvidence, weightEvidence, fmt.Sprintf(tmpl, p.Brand))
	}

	for _, kw := range discoveryTopics(keywords, p.Brand) {
		for _, tmpl := range discoveryTemplates {
			g.add(domain.IntentDiscovery, weightDiscovery, fmt.Sprintf(tmpl, kw))
		}
	}

	for i, kw := range keywordsFrom([]string{description}, maxDescKeywords) {
		weight := weightDescSecondary
		if i < descPrimaryKeywords {
			weight = weightDescPrimary
		}
		g.add(domain.IntentDescription, weight, fmt.Sprintf("best %s services", kw))
	}

	return g.intents
}

type generator struct {
	projectID  string
	domain     string
	maxIntents int
	seen       map[string]bool
	intents    []domain.Intent
}

func (g *generator) add(intentType domain.IntentType, weight float64, query string) {
	if len(g.intents) >= g.maxIntents {
		return
	}
	normalized := domain.NormalizeQuery(query)
	if normalized == "" || g.seen[normalized] {
		return
	}
	g.seen[normalized] = true
	g.intents = append(g.intents, domain.Intent{
		ID:         uuid.NewString(),
		ProjectID:  g.projectID,
		Domain:     g.domain,
		Query:      strings.TrimSpace(query),
		IntentType: intentType,
		Weight:     weight,
	})
}

// howToSeeds turns FAQ fragments and task-looking headings into how-to
// queries. Question-shaped text passes through as-is.
func howToSeeds(meta *SiteMetadata, limit int) []string {
	var out []string
	add := func(q string) {
		if len(out) < limit && q != "" {
			out = append(out, q)
		}
	}

	for _, faq := range meta.FAQs {
		add(strings.TrimSpace(faq))
	}
	for _, h := range meta.Headings {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if strings.Contains(h, "?") {
			add(h)
			continue
		}
		lower := strings.ToLower(h)
		if strings.HasPrefix(lower, "how to ") {
			add(h)
		}
	}
	return out
}

// discoveryTopics picks the subjects for cross-provider discovery queries:
// the strongest content keywords, or the brand itself when the site gave us
// nothing to work with.
func discoveryTopics(keywords []string, brand string) []string {
	if len(keywords) == 0 {
		return []string{brand}
	}
	if len(keywords) > 2 {
		keywords = keywords[:2]
	}
	return keywords
}

// keywordsFrom extracts deduplicated lowercase keywords from text fragments,
// stop-word filtered, in first-seen order.
func keywordsFrom(fragments []string, limit int) []string {
	var out []string
	seen := map[string]bool{}
	for _, fragment := range fragments {
		for _, raw := range strings.Fields(strings.ToLower(fragment)) {
			word := strings.Trim(raw, ".,;:!?()[]\"'|&")
			if len(word) < 3 || stopWords[word] || seen[word] {
				continue
			}
			if !isWordLike(word) {
				continue
			}
			seen[word] = true
			out = append(out, word)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

func isWordLike(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}

func brandFromDomain(host string) string {
	if i := strings.Index(host, "."); i > 0 {
		return host[:i]
	}
	return host
}
