// Package config loads and validates the visibility service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
)

// Default configuration values.
const (
	defaultServiceName     = "visibility"
	defaultServicePort     = 8095
	defaultVersion         = "0.1.0"
	defaultDBHost          = "localhost"
	defaultDBPort          = 5432
	defaultDBName          = "visibility"
	defaultDBUser          = "postgres"
	defaultDBSSLMode       = "disable"
	defaultRedisAddr       = "localhost:6379"
	defaultProviderTimeout = 15 * time.Second
	defaultProbeBudget     = 15 * time.Second
	defaultRunTimeout      = 5 * time.Minute
	defaultCacheTTL        = 48 * time.Hour
	defaultRecencyWindow   = 6 * time.Hour
	defaultPollInterval    = 5 * time.Second
	defaultMaxIntents      = 100
	defaultConcurrency     = 4
	defaultProviderRPS     = 2
)

// Config holds the application configuration.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Service    ServiceConfig    `yaml:"service"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Visibility VisibilityConfig `yaml:"visibility"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Schedules  []ScheduleConfig `yaml:"schedules"`
	Logging    logger.Config    `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RedisConfig holds Redis cache configuration.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// VisibilityConfig holds the run-engine configuration: feature flags,
// allow-lists, timeouts, and execution limits.
type VisibilityConfig struct {
	// Enabled is the global kill switch. When false every API endpoint
	// returns 403 and the worker refuses to execute runs.
	Enabled bool `yaml:"enabled"`
	// AllowedProjects restricts run execution to these project IDs.
	// Empty means all projects are allowed.
	AllowedProjects []string      `yaml:"allowed_projects"`
	RunTimeout      time.Duration `yaml:"run_timeout"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	ProbeBudget     time.Duration `yaml:"probe_budget"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	RecencyWindow   time.Duration `yaml:"recency_window"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxIntents      int           `yaml:"max_intents"`
	Concurrency     int           `yaml:"concurrency"`
}

// ProjectAllowed reports whether the project may execute runs.
func (v *VisibilityConfig) ProjectAllowed(projectID string) bool {
	if len(v.AllowedProjects) == 0 {
		return true
	}
	for _, p := range v.AllowedProjects {
		if p == projectID {
			return true
		}
	}
	return false
}

// ProvidersConfig gates and configures the assistant connectors.
type ProvidersConfig struct {
	Perplexity ProviderConfig `yaml:"perplexity"`
	Claude     ProviderConfig `yaml:"claude"`
	Gemini     ProviderConfig `yaml:"gemini"`
}

// ProviderConfig holds one connector's settings.
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	// RPS bounds outgoing calls to the provider.
	RPS int `yaml:"rps"`
}

// ScheduleConfig describes a recurring visibility run.
type ScheduleConfig struct {
	Cron      string   `yaml:"cron"`
	ProjectID string   `yaml:"project_id"`
	AuditID   string   `yaml:"audit_id"`
	Domain    string   `yaml:"domain"`
	Sources   []string `yaml:"sources"`
}

// Load reads the config file, applies defaults, and overrides from env.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No file is fine; env + defaults carry the service in dev.
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.Version == "" {
		cfg.Service.Version = defaultVersion
	}
	if cfg.Service.Port == 0 {
		cfg.Service.Port = defaultServicePort
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = defaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = defaultDBUser
	}
	if cfg.Database.Database == "" {
		cfg.Database.Database = defaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = defaultDBSSLMode
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaultRedisAddr
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	setVisibilityDefaults(&cfg.Visibility)
	setProviderDefaults(&cfg.Providers.Perplexity, "sonar")
	setProviderDefaults(&cfg.Providers.Claude, "claude-sonnet-4-20250514")
	setProviderDefaults(&cfg.Providers.Gemini, "gemini-2.0-flash")
}

func setVisibilityDefaults(v *VisibilityConfig) {
	if v.RunTimeout == 0 {
		v.RunTimeout = defaultRunTimeout
	}
	if v.ProviderTimeout == 0 {
		v.ProviderTimeout = defaultProviderTimeout
	}
	if v.ProbeBudget == 0 {
		v.ProbeBudget = defaultProbeBudget
	}
	if v.CacheTTL == 0 {
		v.CacheTTL = defaultCacheTTL
	}
	if v.RecencyWindow == 0 {
		v.RecencyWindow = defaultRecencyWindow
	}
	if v.PollInterval == 0 {
		v.PollInterval = defaultPollInterval
	}
	if v.MaxIntents == 0 {
		v.MaxIntents = defaultMaxIntents
	}
	if v.Concurrency == 0 {
		v.Concurrency = defaultConcurrency
	}
}

func setProviderDefaults(p *ProviderConfig, model string) {
	if p.Model == "" {
		p.Model = model
	}
	if p.RPS == 0 {
		p.RPS = defaultProviderRPS
	}
}

func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("VISIBILITY_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			cfg.Service.Port = port
		}
	}
	if v := os.Getenv("VISIBILITY_ENABLED"); v != "" {
		cfg.Visibility.Enabled = parseBool(v)
	}
	if v := os.Getenv("VISIBILITY_ALLOWED_PROJECTS"); v != "" {
		cfg.Visibility.AllowedProjects = splitCSV(v)
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Service.CORSOrigins = splitCSV(v)
	}
	if v := os.Getenv("POSTGRES_VISIBILITY_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_VISIBILITY_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PERPLEXITY_API_KEY"); v != "" {
		cfg.Providers.Perplexity.APIKey = v
		cfg.Providers.Perplexity.Enabled = true
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Providers.Claude.APIKey = v
		cfg.Providers.Claude.Enabled = true
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Providers.Gemini.APIKey = v
		cfg.Providers.Gemini.Enabled = true
	}
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port out of range: %d", c.Service.Port)
	}
	if c.Visibility.Concurrency < 1 {
		return errors.New("visibility.concurrency must be at least 1")
	}
	if c.Visibility.RunTimeout <= 0 {
		return errors.New("visibility.run_timeout must be positive")
	}
	for i, s := range c.Schedules {
		if s.Cron == "" || s.Domain == "" {
			return fmt.Errorf("schedules[%d]: cron and domain are required", i)
		}
	}
	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
