package domainutil_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
	"github.com/jonesrussell/north-cloud/visibility/internal/domainutil"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name         string
		input        string
		wantHostname string
		wantETLD1    string
		wantErr      bool
	}{
		{
			name:         "absolute URL",
			input:        "https://www.example.com/pricing",
			wantHostname: "example.com",
			wantETLD1:    "example.com",
		},
		{
			name:         "bare domain",
			input:        "example.com",
			wantHostname: "example.com",
			wantETLD1:    "example.com",
		},
		{
			name:         "subdomain",
			input:        "https://blog.shop.example.com",
			wantHostname: "blog.shop.example.com",
			wantETLD1:    "example.com",
		},
		{
			name:         "two-label public suffix",
			input:        "https://news.bbc.co.uk/article",
			wantHostname: "news.bbc.co.uk",
			wantETLD1:    "bbc.co.uk",
		},
		{
			name:         "host with port",
			input:        "http://example.com:8080/x",
			wantHostname: "example.com",
			wantETLD1:    "example.com",
		},
		{
			name:    "empty input",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "no dot",
			input:   "localhost",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := domainutil.Normalize(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidDomain))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantHostname, got.Hostname)
			assert.Equal(t, tc.wantETLD1, got.ETLD1)
		})
	}
}

func TestETLD1Idempotent(t *testing.T) {
	hosts := []string{
		"example.com",
		"www.example.com",
		"a.b.c.example.com",
		"news.bbc.co.uk",
		"shop.example.com.au",
		"single.io",
	}
	for _, h := range hosts {
		once := domainutil.ETLD1(h)
		assert.Equal(t, once, domainutil.ETLD1(once), "etld1 not idempotent for %s", h)
	}
}

func TestIsAuditedURL(t *testing.T) {
	testCases := []struct {
		name      string
		candidate string
		audited   string
		aliases   []string
		want      bool
	}{
		{
			name:      "reflexive",
			candidate: "https://example.com",
			audited:   "example.com",
			want:      true,
		},
		{
			name:      "subdomain of audited",
			candidate: "https://docs.example.com/guide",
			audited:   "example.com",
			want:      true,
		},
		{
			name:      "alias match",
			candidate: "https://example.io/about",
			audited:   "example.com",
			aliases:   []string{"example.io"},
			want:      true,
		},
		{
			name:      "alias etld1 match",
			candidate: "https://app.example.io",
			audited:   "example.com",
			aliases:   []string{"example.io"},
			want:      true,
		},
		{
			name:      "unrelated domain",
			candidate: "https://rival.com",
			audited:   "example.com",
			want:      false,
		},
		{
			name:      "non-http scheme treated as bare host",
			candidate: "ftp://example.com/file",
			audited:   "example.com",
			want:      false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := domainutil.IsAuditedURL(tc.candidate, tc.audited, tc.aliases)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDeriveAliases(t *testing.T) {
	aliases := domainutil.DeriveAliases("www.acmetools.com", "Acmetools and Wrenchly are sister brands.")

	assert.Contains(t, aliases, "acmetools.io")
	assert.Contains(t, aliases, "acmetools.net")
	assert.Contains(t, aliases, "wrenchly.com")
	assert.NotContains(t, aliases, "acmetools.com", "audited host itself is not an alias")

	// Deterministic: same inputs, same output.
	again := domainutil.DeriveAliases("www.acmetools.com", "Acmetools and Wrenchly are sister brands.")
	assert.Equal(t, aliases, again)
}
