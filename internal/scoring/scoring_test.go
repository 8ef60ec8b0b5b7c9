package scoring_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
	"github.com/jonesrussell/north-cloud/visibility/internal/scoring"
)

func audited(rank int, url string) domain.Citation {
	return domain.Citation{Rank: rank, RefURL: url, RefDomain: "example.com", IsAuditedDomain: true}
}

func external(rank int, refDomain string) domain.Citation {
	return domain.Citation{Rank: rank, RefURL: "https://" + refDomain + "/page", RefDomain: refDomain}
}

func TestCalculateIntentScore(t *testing.T) {
	testCases := []struct {
		name        string
		citations   []domain.Citation
		competitors []string
		want        float64
	}{
		{
			name: "no citations",
			want: 0,
		},
		{
			name:      "audited at rank 1",
			citations: []domain.Citation{audited(1, "https://example.com/a")},
			want:      90, // 70 base + 20 top-3
		},
		{
			name:      "audited at rank 7",
			citations: []domain.Citation{external(1, "other.org"), audited(7, "https://example.com/a")},
			want:      80, // 70 base + 10 top-10
		},
		{
			name:      "audited beyond rank 10",
			citations: []domain.Citation{audited(11, "https://example.com/a")},
			want:      70,
		},
		{
			name: "multiple distinct audited urls",
			citations: []domain.Citation{
				audited(1, "https://example.com/a"),
				audited(2, "https://example.com/b"),
			},
			want: 95, // 70 + 20 + 5
		},
		{
			name: "same audited url twice earns no breadth bonus",
			citations: []domain.Citation{
				audited(1, "https://example.com/a"),
				audited(4, "https://example.com/a"),
			},
			want: 90,
		},
		{
			name:        "competitor only floors at zero",
			citations:   []domain.Citation{external(1, "rival.com")},
			competitors: []string{"rival.com"},
			want:        0,
		},
		{
			name: "competitor penalty capped",
			citations: []domain.Citation{
				audited(1, "https://example.com/a"),
				external(2, "rival.com"),
				external(3, "rival.com"),
				external(4, "rival.com"),
			},
			competitors: []string{"rival.com"},
			want:        80, // 90 − 10 cap
		},
		{
			name: "competitor matched on etld1",
			citations: []domain.Citation{
				audited(1, "https://example.com/a"),
				external(2, "blog.rival.com"),
			},
			competitors: []string{"rival.com"},
			want:        85,
		},
		{
			name:      "non-competitor externals are neutral",
			citations: []domain.Citation{audited(1, "https://example.com/a"), external(2, "neutral.org")},
			want:      90,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := scoring.CalculateIntentScore(tc.citations, tc.competitors)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCalculateIntentScoreBounds(t *testing.T) {
	sets := [][]domain.Citation{
		nil,
		{audited(1, "https://example.com/a"), audited(2, "https://example.com/b"), audited(3, "https://example.com/c")},
		{external(1, "rival.com"), external(2, "rival.com"), external(3, "rival.com"), external(4, "rival.com")},
	}
	for _, set := range sets {
		got := scoring.CalculateIntentScore(set, []string{"rival.com"})
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 100.0)
	}
}

func TestCalculateIntentScoreMonotonic(t *testing.T) {
	base := []domain.Citation{external(1, "neutral.org")}
	baseScore := scoring.CalculateIntentScore(base, []string{"rival.com"})

	// Adding an audited top-3 citation never decreases the score.
	withAudited := append([]domain.Citation{audited(2, "https://example.com/a")}, base...)
	assert.GreaterOrEqual(t, scoring.CalculateIntentScore(withAudited, []string{"rival.com"}), baseScore)

	// Adding a competitor citation never increases it.
	withCompetitor := append([]domain.Citation{}, withAudited...)
	withCompetitor = append(withCompetitor, external(5, "rival.com"))
	assert.LessOrEqual(t,
		scoring.CalculateIntentScore(withCompetitor, []string{"rival.com"}),
		scoring.CalculateIntentScore(withAudited, []string{"rival.com"}))
}

func TestAggregate(t *testing.T) {
	now := time.Now()
	scores := []scoring.IntentScore{
		{Score: 90, Weight: 1.5},
		{Score: 0, Weight: 1.0},
		{Score: 60, Weight: 0.5},
	}

	summary := scoring.Aggregate(scores, now.Add(-6*time.Hour), now)

	// (90·1.5 + 0·1.0 + 60·0.5) / 3.0 = 55
	assert.InDelta(t, 55.0, summary.Score, 0.001)
	assert.InDelta(t, 2.0/3.0, summary.Coverage, 0.001)
	assert.InDelta(t, 0.75, summary.Recency, 0.001)
}

func TestAggregateZeroWeights(t *testing.T) {
	now := time.Now()
	summary := scoring.Aggregate([]scoring.IntentScore{
		{Score: 90, Weight: 0},
		{Score: 50, Weight: 0},
	}, now, now)

	assert.Zero(t, summary.Score, "all-zero weights contribute nothing")
	assert.InDelta(t, 1.0, summary.Coverage, 0.001)
}

func TestAggregateEmpty(t *testing.T) {
	summary := scoring.Aggregate(nil, time.Time{}, time.Now())

	assert.Zero(t, summary.Score)
	assert.Zero(t, summary.Coverage)
	assert.Zero(t, summary.Recency)
}

func TestRecencyClampsToZero(t *testing.T) {
	now := time.Now()
	assert.Zero(t, scoring.Recency(now.Add(-48*time.Hour), now))
	assert.InDelta(t, 1.0, scoring.Recency(now, now), 0.001)
}
