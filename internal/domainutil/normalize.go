// Package domainutil normalizes domains and decides whether a cited URL
// belongs to the audited domain.
package domainutil

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
)

// twoLabelSuffixes are public suffixes spanning two labels. For hosts under
// these, the registrable domain keeps three labels.
var twoLabelSuffixes = map[string]bool{
	"co.uk":  true,
	"org.uk": true,
	"ac.uk":  true,
	"com.au": true,
	"net.au": true,
	"co.jp":  true,
	"com.br": true,
	"co.in":  true,
	"co.za":  true,
	"com.mx": true,
	"co.nz":  true,
}

// Normalized is the canonical form of an audited domain.
type Normalized struct {
	// AuditedURL is scheme://host with no path.
	AuditedURL string
	// Hostname is the lowercase host with any www. prefix removed.
	Hostname string
	// ETLD1 is the registrable domain (eTLD+1).
	ETLD1 string
	// Path is the path component of the input, if any.
	Path string
}

// Normalize parses an absolute URL or bare domain into its canonical parts.
// Returns domain.ErrInvalidDomain when the input cannot be parsed into a
// plausible hostname.
func Normalize(raw string) (*Normalized, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty input", domain.ErrInvalidDomain)
	}

	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDomain, raw)
	}

	host := Hostname(u.Host)
	if host == "" || !strings.Contains(host, ".") {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDomain, raw)
	}

	return &Normalized{
		AuditedURL: u.Scheme + "://" + host,
		Hostname:   host,
		ETLD1:      ETLD1(host),
		Path:       u.Path,
	}, nil
}

// Hostname lowercases a host, strips any port and a leading www. prefix.
func Hostname(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.Index(host, ":"); i != -1 {
		host = host[:i]
	}
	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "www.")
	return host
}

// ETLD1 returns the registrable domain for a hostname: the last two labels,
// or the last three when the final two form a known two-label public suffix.
// Idempotent: ETLD1(ETLD1(h)) == ETLD1(h).
func ETLD1(host string) string {
	host = Hostname(host)
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	lastTwo := strings.Join(labels[len(labels)-2:], ".")
	if twoLabelSuffixes[lastTwo] {
		return strings.Join(labels[len(labels)-3:], ".")
	}
	return lastTwo
}

// HostnameFromURL extracts the normalized hostname from a URL string.
// Returns "" when the URL does not parse as http/https.
func HostnameFromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return Hostname(u.Host)
}

// IsAuditedURL reports whether a candidate URL belongs to the audited host
// or any of its aliases, either exactly or by sharing a registrable domain.
func IsAuditedURL(candidateURL, auditedHost string, aliases []string) bool {
	host := HostnameFromURL(candidateURL)
	if host == "" {
		// Bare domains are accepted as candidates too.
		host = Hostname(candidateURL)
		if host == "" || !strings.Contains(host, ".") {
			return false
		}
	}

	targets := make([]string, 0, len(aliases)+1)
	targets = append(targets, Hostname(auditedHost))
	for _, a := range aliases {
		targets = append(targets, Hostname(a))
	}

	hostETLD1 := ETLD1(host)
	for _, t := range targets {
		if t == "" {
			continue
		}
		if host == t || hostETLD1 == ETLD1(t) {
			return true
		}
	}
	return false
}
