package intent

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/visibility/internal/httpclient"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
)

const maxSeedsPerKind = 20

// SiteMetadata is the content skeleton of a homepage used to seed intent
// generation. All fields are optional; generation degrades to templates when
// the fetch fails.
type SiteMetadata struct {
	Title       string
	Description string
	Headings    []string
	FAQs        []string
	Locations   []string
}

// SiteFetcher pulls homepage metadata for a domain.
type SiteFetcher struct {
	client *http.Client
	log    logger.Logger
}

// NewSiteFetcher creates a SiteFetcher.
func NewSiteFetcher(log logger.Logger) *SiteFetcher {
	return &SiteFetcher{
		client: httpclient.New(nil),
		log:    log,
	}
}

// Fetch downloads the homepage and extracts title, meta description, H1/H2
// headings, and FAQ-looking fragments.
func (f *SiteFetcher) Fetch(ctx context.Context, homepageURL string) (*SiteMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, homepageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create homepage request: %w", err)
	}
	req.Header.Set("User-Agent", "north-cloud-visibility/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch homepage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("homepage returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse homepage: %w", err)
	}

	return ParseDocument(doc), nil
}

// ParseDocument extracts seed metadata from a parsed HTML document.
func ParseDocument(doc *goquery.Document) *SiteMetadata {
	meta := &SiteMetadata{
		Title:       cleanText(doc.Find("title").First().Text()),
		Description: cleanText(doc.Find(`meta[name="description"]`).AttrOr("content", "")),
	}

	doc.Find("h1, h2").Each(func(_ int, s *goquery.Selection) {
		if len(meta.Headings) >= maxSeedsPerKind {
			return
		}
		if text := cleanText(s.Text()); text != "" {
			meta.Headings = append(meta.Headings, text)
		}
	})

	// Question-shaped headings and <summary> elements read as FAQ entries.
	doc.Find("h3, summary, dt").Each(func(_ int, s *goquery.Selection) {
		if len(meta.FAQs) >= maxSeedsPerKind {
			return
		}
		text := cleanText(s.Text())
		if text != "" && strings.Contains(text, "?") {
			meta.FAQs = append(meta.FAQs, text)
		}
	})

	return meta
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
