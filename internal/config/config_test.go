package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "visibility", cfg.Service.Name)
	assert.Equal(t, defaultServicePort, cfg.Service.Port)
	assert.Equal(t, defaultRunTimeout, cfg.Visibility.RunTimeout)
	assert.Equal(t, defaultCacheTTL, cfg.Visibility.CacheTTL)
	assert.Equal(t, defaultConcurrency, cfg.Visibility.Concurrency)
	assert.False(t, cfg.Visibility.Enabled, "feature must be opt-in")
	assert.Equal(t, "sonar", cfg.Providers.Perplexity.Model)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
service:
  port: 9001
visibility:
  enabled: true
  run_timeout: 2m
  allowed_projects: [proj-1]
providers:
  perplexity:
    enabled: true
    api_key: test-key
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Service.Port)
	assert.True(t, cfg.Visibility.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Visibility.RunTimeout)
	assert.True(t, cfg.Providers.Perplexity.Enabled)
	// Unset fields still get defaults.
	assert.Equal(t, defaultProviderTimeout, cfg.Visibility.ProviderTimeout)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VISIBILITY_ENABLED", "true")
	t.Setenv("VISIBILITY_ALLOWED_PROJECTS", "proj-1, proj-2")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("VISIBILITY_PORT", "9100")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.True(t, cfg.Visibility.Enabled)
	assert.Equal(t, []string{"proj-1", "proj-2"}, cfg.Visibility.AllowedProjects)
	assert.True(t, cfg.Providers.Claude.Enabled, "API key in env enables the provider")
	assert.Equal(t, "sk-test", cfg.Providers.Claude.APIKey)
	assert.Equal(t, 9100, cfg.Service.Port)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"port out of range", "service:\n  port: 70000\n"},
		{"schedule missing domain", "schedules:\n  - cron: \"0 6 * * *\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.yml))
			assert.Error(t, err)
		})
	}
}

func TestProjectAllowed(t *testing.T) {
	v := VisibilityConfig{}
	assert.True(t, v.ProjectAllowed("anything"), "empty list allows all")

	v.AllowedProjects = []string{"proj-1"}
	assert.True(t, v.ProjectAllowed("proj-1"))
	assert.False(t, v.ProjectAllowed("proj-2"))
}
