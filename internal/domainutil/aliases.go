package domainutil

import (
	"sort"
	"strings"
)

// brandStopWords are filtered out of site descriptions before treating the
// remaining tokens as potential brand names.
var brandStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "for": true,
	"of": true, "in": true, "on": true, "to": true, "with": true, "by": true,
	"is": true, "are": true, "we": true, "our": true, "your": true,
	"best": true, "top": true, "leading": true, "online": true,
	"service": true, "services": true, "company": true, "platform": true,
	"site": true, "website": true, "official": true, "home": true,
}

// aliasTLDs are the extensions tried when projecting a brand token onto
// sibling hostnames.
var aliasTLDs = []string{".com", ".net", ".org", ".io", ".co", ".app"}

// DeriveAliases returns additional brand hostnames to treat as the audited
// domain, derived from the audited host and an optional free-text site
// description. Pure and deterministic: no network calls, stable output order.
func DeriveAliases(auditedHost, description string) []string {
	host := Hostname(auditedHost)
	if host == "" {
		return nil
	}

	seen := map[string]bool{host: true}
	var aliases []string
	add := func(h string) {
		h = Hostname(h)
		if h == "" || seen[h] {
			return
		}
		seen[h] = true
		aliases = append(aliases, h)
	}

	// The registrable domain itself, and the brand label on common TLDs.
	etld1 := ETLD1(host)
	add(etld1)

	brand := brandLabel(etld1)
	if brand != "" {
		for _, tld := range aliasTLDs {
			add(brand + tld)
		}
	}

	// Tokens from the description that look like the brand (e.g. a sibling
	// product name) project onto the same TLD as the audited domain.
	hostTLD := tldOf(etld1)
	for _, token := range descriptionBrandTokens(description) {
		if token == brand {
			continue
		}
		add(token + hostTLD)
	}

	sort.Strings(aliases)
	return aliases
}

// brandLabel returns the leftmost label of a registrable domain.
func brandLabel(etld1 string) string {
	if i := strings.Index(etld1, "."); i > 0 {
		return etld1[:i]
	}
	return etld1
}

// tldOf returns everything after the first label, dot included.
func tldOf(etld1 string) string {
	if i := strings.Index(etld1, "."); i > 0 {
		return etld1[i:]
	}
	return ".com"
}

// descriptionBrandTokens extracts capitalized-looking single tokens from a
// free-text description, stop-word filtered and lowercased.
func descriptionBrandTokens(description string) []string {
	if description == "" {
		return nil
	}

	var tokens []string
	seen := map[string]bool{}
	for _, raw := range strings.Fields(description) {
		word := strings.Trim(raw, ".,;:!?()[]\"'")
		if len(word) < 3 || len(word) > 30 {
			continue
		}
		// Only words the author chose to capitalize mid-sentence read as
		// brand names; everything else is prose.
		if word[0] < 'A' || word[0] > 'Z' {
			continue
		}
		lower := strings.ToLower(word)
		if brandStopWords[lower] || seen[lower] {
			continue
		}
		if !isAlphaNumeric(lower) {
			continue
		}
		seen[lower] = true
		tokens = append(tokens, lower)
	}
	return tokens
}

func isAlphaNumeric(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
