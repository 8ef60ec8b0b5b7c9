// Package scoring computes per-intent and run-level visibility scores from
// citation sets.
package scoring

import (
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
	"github.com/jonesrussell/north-cloud/visibility/internal/domainutil"
)

// Score component values.
const (
	auditedBase        = 70.0
	topThreeBonus      = 20.0
	topTenBonus        = 10.0
	multiURLBonus      = 5.0
	competitorPenalty  = 5.0
	maxCompetitorDebit = 10.0
	maxScore           = 100.0
	recencyHorizon     = 24 * time.Hour
)

// CalculateIntentScore scores one (intent, source) execution from its
// citation set. Zero citations score zero; an audited citation carries the
// bulk of the score, with rank and breadth bonuses and a capped competitor
// penalty. The result is clamped to [0, 100].
func CalculateIntentScore(citations []domain.Citation, competitors []string) float64 {
	if len(citations) == 0 {
		return 0
	}

	var (
		score       float64
		bestRank    = 0
		auditedURLs = map[string]bool{}
		penalty     float64
	)

	competitorSet := make(map[string]bool, len(competitors))
	for _, c := range competitors {
		if etld1 := domainutil.ETLD1(strings.TrimSpace(c)); etld1 != "" {
			competitorSet[etld1] = true
		}
	}

	for _, c := range citations {
		if c.IsAuditedDomain {
			auditedURLs[c.RefURL] = true
			if bestRank == 0 || c.Rank < bestRank {
				bestRank = c.Rank
			}
			continue
		}
		if competitorSet[domainutil.ETLD1(c.RefDomain)] {
			penalty += competitorPenalty
		}
	}

	if len(auditedURLs) > 0 {
		score += auditedBase
		switch {
		case bestRank <= 3:
			score += topThreeBonus
		case bestRank <= 10:
			score += topTenBonus
		}
		if len(auditedURLs) > 1 {
			score += multiURLBonus
		}
	}

	if penalty > maxCompetitorDebit {
		penalty = maxCompetitorDebit
	}
	score -= penalty

	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// IntentScore pairs one per-intent score with the intent's weight for
// run-level aggregation.
type IntentScore struct {
	Score  float64
	Weight float64
}

// RunSummary is the run-level aggregation: weighted mean score, coverage,
// and recency as independent outputs. Consumers combine them differently.
type RunSummary struct {
	Score    float64 `json:"score"`
	Coverage float64 `json:"coverage"`
	Recency  float64 `json:"recency"`
}

// Aggregate computes the run-level summary. The score is the weighted mean
// of per-intent scores; zero-weight intents contribute nothing, and an
// all-zero-weight set scores 0. Coverage is the fraction of intents that
// scored above zero. Recency decays linearly to zero over 24 hours from run
// start.
func Aggregate(scores []IntentScore, startedAt time.Time, now time.Time) RunSummary {
	var (
		weightedSum float64
		totalWeight float64
		covered     int
	)
	for _, s := range scores {
		if s.Weight > 0 {
			weightedSum += s.Score * s.Weight
			totalWeight += s.Weight
		}
		if s.Score > 0 {
			covered++
		}
	}

	summary := RunSummary{Recency: Recency(startedAt, now)}
	if totalWeight > 0 {
		summary.Score = weightedSum / totalWeight
	}
	if len(scores) > 0 {
		summary.Coverage = float64(covered) / float64(len(scores))
	}
	return summary
}

// Recency returns max(0, 1 − hoursSinceStart/24).
func Recency(startedAt time.Time, now time.Time) float64 {
	if startedAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(startedAt)
	if elapsed <= 0 {
		return 1
	}
	r := 1 - elapsed.Hours()/recencyHorizon.Hours()
	if r < 0 {
		return 0
	}
	return r
}
