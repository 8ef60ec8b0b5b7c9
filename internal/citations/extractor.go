// Package citations turns raw assistant output into a clean, de-duplicated,
// ordered citation list and checks that cited URLs are reachable.
package citations

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/jonesrussell/north-cloud/visibility/internal/domainutil"
)

// Source is a structured citation as returned by a provider that supports
// a machine-parseable sources section.
type Source struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Extracted is one citation candidate produced by the extractor.
type Extracted struct {
	Rank      int
	RefURL    string
	RefDomain string
	Title     string
	Snippet   string
}

var (
	// "- Title — https://..." with em dash, en dash, or hyphen separators.
	bulletRe = regexp.MustCompile(`(?m)^\s*[-*•]\s*(.+?)\s+[—–-]+\s+(https?://\S+)\s*$`)

	// Markdown links: [title](url).
	markdownRe = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)\s]+)\)`)

	// Bare http(s) URLs, stopping at whitespace and common delimiters.
	bareURLRe = regexp.MustCompile(`https?://[^\s\]\)\>\<"']+`)
)

// Extract parses structured sources and free text into an ordered,
// de-duplicated citation list. Precedence: structured sources, bulleted
// "- title — url" lines, markdown links, then bare URLs. The first
// occurrence of a URL wins and keeps its title. Parsing the same input
// twice yields the same list.
func Extract(text string, structured []Source) []Extracted {
	var (
		out  []Extracted
		seen = map[string]bool{}
	)

	add := func(rawURL, title, snippet string) {
		normalized := NormalizeURL(rawURL)
		if normalized == "" || seen[normalized] {
			return
		}
		seen[normalized] = true

		host := domainutil.HostnameFromURL(normalized)
		if title = strings.TrimSpace(title); title == "" {
			title = synthesizeTitle(normalized, host)
		}
		out = append(out, Extracted{
			Rank:      len(out) + 1,
			RefURL:    normalized,
			RefDomain: host,
			Title:     title,
			Snippet:   strings.TrimSpace(snippet),
		})
	}

	// 1. Structured sources map directly.
	for _, s := range structured {
		add(s.URL, s.Title, s.Snippet)
	}

	// 2. Bulleted "- title — url" lines.
	for _, m := range bulletRe.FindAllStringSubmatch(text, -1) {
		add(trimURLArtifacts(m[2]), m[1], "")
	}

	// 3. Markdown links. Spans are recorded so the bare-URL pass below does
	// not re-extract the same URLs without their titles.
	markdownSpans := markdownRe.FindAllStringIndex(text, -1)
	for _, m := range markdownRe.FindAllStringSubmatch(text, -1) {
		add(trimURLArtifacts(m[2]), m[1], "")
	}

	// 4. Bare URLs anywhere, lowest confidence.
	for _, span := range bareURLRe.FindAllStringIndex(text, -1) {
		if insideAny(span, markdownSpans) {
			continue
		}
		add(trimURLArtifacts(text[span[0]:span[1]]), "", "")
	}

	return out
}

// NormalizeURL parses a URL, requires an http/https scheme, and strips the
// fragment. Returns "" when the candidate does not parse.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

// trimURLArtifacts removes punctuation that prose commonly attaches to URLs.
func trimURLArtifacts(raw string) string {
	return strings.TrimRight(raw, ",.;:!?)]}'\"")
}

// synthesizeTitle derives a human-readable title from the last meaningful
// path segment, or falls back to the hostname.
func synthesizeTitle(normalizedURL, host string) string {
	u, err := url.Parse(normalizedURL)
	if err == nil {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i := len(segments) - 1; i >= 0; i-- {
			seg := segments[i]
			seg = strings.TrimSuffix(seg, ".html")
			seg = strings.TrimSuffix(seg, ".htm")
			seg = strings.TrimSuffix(seg, ".php")
			seg = strings.NewReplacer("-", " ", "_", " ").Replace(seg)
			seg = strings.TrimSpace(seg)
			if len(seg) > 1 {
				return seg
			}
		}
	}
	return host
}

func insideAny(span []int, containers [][]int) bool {
	for _, c := range containers {
		if span[0] >= c[0] && span[1] <= c[1] {
			return true
		}
	}
	return false
}
