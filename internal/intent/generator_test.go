package intent_test

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
	"github.com/jonesrussell/north-cloud/visibility/internal/intent"
)

func TestGenerateBrandTemplates(t *testing.T) {
	intents := intent.Generate(intent.Params{
		ProjectID: "p1",
		Domain:    "acmetools.com",
	})

	require.NotEmpty(t, intents)

	queries := queriesOf(intents)
	assert.Contains(t, queries, "what is acmetools")
	assert.Contains(t, queries, "acmetools reviews")
	assert.Contains(t, queries, "acmetools vs competitors")

	for _, it := range intents {
		assert.Equal(t, "p1", it.ProjectID)
		assert.Equal(t, "acmetools.com", it.Domain)
		assert.NotEmpty(t, it.ID)
		assert.Greater(t, it.Weight, 0.0)
	}
}

func TestGenerateCategoryWeights(t *testing.T) {
	intents := intent.Generate(intent.Params{
		Domain: "acmetools.com",
		Meta: &intent.SiteMetadata{
			Title:    "Acme power drills and saws",
			Headings: []string{"Cordless drills for professionals"},
			FAQs:     []string{"How do I choose a drill?"},
		},
		Description: "Professional woodworking tools and machinery supplies",
	})

	byType := map[domain.IntentType][]domain.Intent{}
	for _, it := range intents {
		byType[it.IntentType] = append(byType[it.IntentType], it)
	}

	wantWeights := map[domain.IntentType]float64{
		domain.IntentBrand:       1.3,
		domain.IntentProduct:     1.2,
		domain.IntentHowTo:       1.0,
		domain.IntentComparative: 1.4,
		domain.IntentEvidence:    1.0,
		domain.IntentDiscovery:   1.5,
	}
	for intentType, weight := range wantWeights {
		require.NotEmpty(t, byType[intentType], "missing category %s", intentType)
		assert.Equal(t, weight, byType[intentType][0].Weight, "weight for %s", intentType)
	}

	// Description-driven intents carry the primary weight first.
	desc := byType[domain.IntentDescription]
	require.NotEmpty(t, desc)
	assert.Equal(t, 1.4, desc[0].Weight)
}

func TestGenerateLocalOnlyWithLocationSeeds(t *testing.T) {
	without := intent.Generate(intent.Params{
		Domain: "acmetools.com",
		Meta:   &intent.SiteMetadata{Title: "Power drills"},
	})
	for _, it := range without {
		assert.NotEqual(t, domain.IntentLocal, it.IntentType)
	}

	with := intent.Generate(intent.Params{
		Domain: "acmetools.com",
		Meta: &intent.SiteMetadata{
			Title:     "Power drills",
			Locations: []string{"Toronto"},
		},
	})
	var local int
	for _, it := range with {
		if it.IntentType == domain.IntentLocal {
			local++
			assert.Contains(t, strings.ToLower(it.Query), "toronto")
		}
	}
	assert.Positive(t, local)
}

func TestGenerateDeduplicates(t *testing.T) {
	intents := intent.Generate(intent.Params{
		Domain: "acmetools.com",
		Meta: &intent.SiteMetadata{
			// Duplicate headings must not produce duplicate intents.
			Headings: []string{"Cordless drills", "cordless   DRILLS"},
		},
	})

	seen := map[string]bool{}
	for _, it := range intents {
		normalized := domain.NormalizeQuery(it.Query)
		assert.False(t, seen[normalized], "duplicate query %q", it.Query)
		seen[normalized] = true
	}
}

func TestGenerateRespectsCap(t *testing.T) {
	intents := intent.Generate(intent.Params{
		Domain:     "acmetools.com",
		MaxIntents: 5,
		Meta: &intent.SiteMetadata{
			Title:    "Drills saws sanders routers planers grinders",
			Headings: []string{"Workshop equipment buying guides"},
		},
	})

	assert.Len(t, intents, 5)
}

func TestGenerateDeterministic(t *testing.T) {
	params := intent.Params{
		Domain:      "acmetools.com",
		Description: "Professional woodworking tools",
	}

	first := queriesOf(intent.Generate(params))
	second := queriesOf(intent.Generate(params))

	assert.Equal(t, first, second)
}

func TestParseDocument(t *testing.T) {
	html := `<html><head>
		<title>Acme Tools | Power Drills</title>
		<meta name="description" content="Professional tools for trades">
	</head><body>
		<h1>Cordless Drills</h1>
		<h2>Buying Guides</h2>
		<h3>Which drill should I buy?</h3>
		<h3>Our Story</h3>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	meta := intent.ParseDocument(doc)

	assert.Equal(t, "Acme Tools | Power Drills", meta.Title)
	assert.Equal(t, "Professional tools for trades", meta.Description)
	assert.Equal(t, []string{"Cordless Drills", "Buying Guides"}, meta.Headings)
	assert.Equal(t, []string{"Which drill should I buy?"}, meta.FAQs)
}

func queriesOf(intents []domain.Intent) []string {
	out := make([]string, len(intents))
	for i, it := range intents {
		out[i] = domain.NormalizeQuery(it.Query)
	}
	return out
}
