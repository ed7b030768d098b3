package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config is the root configuration for auros.
type Config struct {
	Database     DatabaseConfig
	Logging      LoggingConfig
	Schedule     ScheduleConfig
	Scan         ScanConfig
	Scrape       ScrapeConfig
	LLM          LLMConfig
	Salary       SalaryConfig
	Scoring      ScoringConfig
	Notification NotificationConfig
	Terms        TermsConfig
	Companies    []CompanyConfig
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// ScheduleConfig controls the daemon's cron trigger.
type ScheduleConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Cron       string `yaml:"cron"`
	Timezone   string `yaml:"timezone"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// ScanConfig holds orchestrator settings.
type ScanConfig struct {
	// MaxDuration bounds how long a scan may hold the running state. A running
	// record older than this is treated as abandoned.
	MaxDuration time.Duration
}

// RetryConfig is the retry policy for page fetches and model calls.
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
}

// ScrapeConfig controls the scrape coordinator.
type ScrapeConfig struct {
	MaxConcurrentPages int
	MinDelay           time.Duration // pacing between fetches against one company
	MaxDelay           time.Duration
	PageTimeout        time.Duration
	MaxJobsPerCompany  int
	Retry              RetryConfig
	AllowedDomains     []string
}

// LLMConfig selects the model provider used for extraction and estimation.
type LLMConfig struct {
	Provider string        // "ollama" or "openai"
	BaseURL  string        // e.g. http://localhost:11434 or https://api.openai.com/v1
	Model    string        // model identifier
	APIKey   string        // expanded from env var by Load
	Timeout  time.Duration // per-call timeout
}

// SalaryConfig controls the salary resolver.
type SalaryConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
}

// ScoringConfig holds the user's preferences for scoring.
type ScoringConfig struct {
	PreferredWorkMode string `yaml:"preferred_work_mode"` // any, remote, hybrid, onsite
	TargetYOEMin      int    `yaml:"target_yoe_min"`
	TargetYOEMax      int    `yaml:"target_yoe_max"`
	DomainSaturation  int    `yaml:"domain_saturation"`
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string  `yaml:"type"`        // "log", "slack" or "webhook"
	WebhookURL string  `yaml:"webhook_url"` // required if type is "slack" or "webhook"
	MinScore   float64 `yaml:"min_score"`
}

// SalaryPattern is a regex with two capture groups and a multiplier.
type SalaryPattern struct {
	Pattern    string `yaml:"pattern"`
	Multiplier int    `yaml:"multiplier"`
}

// TermsConfig holds the declarative term lists.
type TermsConfig struct {
	TitleFilter    []string        `yaml:"title_filter"`
	TitleExclude   []string        `yaml:"title_exclude"`
	Title          []string        `yaml:"title"`
	Domain         []string        `yaml:"domain"`
	SalaryPatterns []SalaryPattern `yaml:"salary_patterns"`
}

// CompanyConfig describes a company seeded into the store.
type CompanyConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	CareersURL string `yaml:"careers_url"`
	Tier       int    `yaml:"tier"`
	Enabled    bool   `yaml:"enabled"`
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Database     DatabaseConfig     `yaml:"database"`
	Logging      LoggingConfig      `yaml:"logging"`
	Schedule     ScheduleConfig     `yaml:"schedule"`
	Scan         rawScanConfig      `yaml:"scan"`
	Scrape       rawScrapeConfig    `yaml:"scrape"`
	LLM          rawLLMConfig       `yaml:"llm"`
	Salary       SalaryConfig       `yaml:"salary"`
	Scoring      ScoringConfig      `yaml:"scoring"`
	Notification NotificationConfig `yaml:"notification"`
	Terms        TermsConfig        `yaml:"terms"`
	Companies    []CompanyConfig    `yaml:"companies"`
}

type rawScanConfig struct {
	MaxDuration string `yaml:"max_duration"`
}

type rawRetryConfig struct {
	Attempts  int    `yaml:"attempts"`
	BaseDelay string `yaml:"base_delay"`
}

type rawScrapeConfig struct {
	MaxConcurrentPages int            `yaml:"max_concurrent_pages"`
	MinDelay           string         `yaml:"min_delay"`
	MaxDelay           string         `yaml:"max_delay"`
	PageTimeout        string         `yaml:"page_timeout"`
	MaxJobsPerCompany  int            `yaml:"max_jobs_per_company"`
	Retry              rawRetryConfig `yaml:"retry"`
	AllowedDomains     []string       `yaml:"allowed_domains"`
}

type rawLLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	return Load("")
}

// Load reads the YAML config file at path on top of the built-in defaults,
// validates it, and returns Config. An empty path yields the defaults alone.
func Load(path string) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(defaultsYAML, &raw); err != nil {
		return nil, fmt.Errorf("parse defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &raw); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	return build(raw)
}

// expandEnv substitutes $VAR and ${VAR} for variables that are set and leaves
// everything else untouched, so regex dollars survive.
func expandEnv(s string) string {
	return os.Expand(s, func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return "$" + name
	})
}

type durationField struct {
	name  string
	value string
	dst   *time.Duration
}

func build(raw rawConfig) (*Config, error) {
	cfg := &Config{
		Database: raw.Database,
		Logging:  raw.Logging,
		Schedule: raw.Schedule,
		Scrape: ScrapeConfig{
			MaxConcurrentPages: raw.Scrape.MaxConcurrentPages,
			MaxJobsPerCompany:  raw.Scrape.MaxJobsPerCompany,
			Retry:              RetryConfig{Attempts: raw.Scrape.Retry.Attempts},
			AllowedDomains:     normalizeDomains(raw.Scrape.AllowedDomains),
		},
		LLM: LLMConfig{
			Provider: strings.ToLower(raw.LLM.Provider),
			BaseURL:  strings.TrimRight(raw.LLM.BaseURL, "/"),
			Model:    raw.LLM.Model,
			APIKey:   raw.LLM.APIKey,
		},
		Salary:       raw.Salary,
		Scoring:      raw.Scoring,
		Notification: raw.Notification,
		Terms:        raw.Terms,
		Companies:    raw.Companies,
	}
	cfg.Scoring.PreferredWorkMode = strings.ToLower(strings.TrimSpace(cfg.Scoring.PreferredWorkMode))

	fields := []durationField{
		{"scan.max_duration", raw.Scan.MaxDuration, &cfg.Scan.MaxDuration},
		{"scrape.min_delay", raw.Scrape.MinDelay, &cfg.Scrape.MinDelay},
		{"scrape.max_delay", raw.Scrape.MaxDelay, &cfg.Scrape.MaxDelay},
		{"scrape.page_timeout", raw.Scrape.PageTimeout, &cfg.Scrape.PageTimeout},
		{"scrape.retry.base_delay", raw.Scrape.Retry.BaseDelay, &cfg.Scrape.Retry.BaseDelay},
		{"llm.timeout", raw.LLM.Timeout, &cfg.LLM.Timeout},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", f.name, f.value, err)
		}
		*f.dst = d
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalizeDomains(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "*.")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	switch cfg.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", cfg.Logging.Format)
	}

	if cfg.Schedule.Enabled {
		if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron %q: %w", cfg.Schedule.Cron, err)
		}
		if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone %q: %w", cfg.Schedule.Timezone, err)
		}
	}

	if cfg.Scan.MaxDuration <= 0 {
		return fmt.Errorf("scan.max_duration must be positive, got %v", cfg.Scan.MaxDuration)
	}

	s := cfg.Scrape
	if s.MaxConcurrentPages < 1 {
		return fmt.Errorf("scrape.max_concurrent_pages must be at least 1, got %d", s.MaxConcurrentPages)
	}
	if s.MinDelay < 0 || s.MaxDelay < s.MinDelay {
		return fmt.Errorf("scrape delays must satisfy 0 <= min_delay <= max_delay, got %v and %v", s.MinDelay, s.MaxDelay)
	}
	if s.PageTimeout <= 0 {
		return fmt.Errorf("scrape.page_timeout must be positive, got %v", s.PageTimeout)
	}
	if s.MaxJobsPerCompany < 1 {
		return fmt.Errorf("scrape.max_jobs_per_company must be at least 1, got %d", s.MaxJobsPerCompany)
	}
	if s.Retry.Attempts < 1 {
		return fmt.Errorf("scrape.retry.attempts must be at least 1, got %d", s.Retry.Attempts)
	}

	switch cfg.LLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("llm.provider must be \"ollama\" or \"openai\", got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if _, err := url.ParseRequestURI(cfg.LLM.BaseURL); err != nil {
		return fmt.Errorf("llm.base_url %q: %w", cfg.LLM.BaseURL, err)
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required when llm.provider is \"openai\"")
	}
	if cfg.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %v", cfg.LLM.Timeout)
	}

	if c := cfg.Salary.MinConfidence; c < 0 || c > 1 {
		return fmt.Errorf("salary.min_confidence must be within [0, 1], got %v", c)
	}

	switch cfg.Scoring.PreferredWorkMode {
	case "any", "remote", "hybrid", "onsite":
	default:
		return fmt.Errorf("scoring.preferred_work_mode must be one of any, remote, hybrid, onsite, got %q", cfg.Scoring.PreferredWorkMode)
	}
	if cfg.Scoring.TargetYOEMin < 0 || cfg.Scoring.TargetYOEMax < cfg.Scoring.TargetYOEMin {
		return fmt.Errorf("scoring target yoe band is invalid: %d-%d", cfg.Scoring.TargetYOEMin, cfg.Scoring.TargetYOEMax)
	}

	n := cfg.Notification
	if n.MinScore < 0 || n.MinScore > 1 {
		return fmt.Errorf("notification.min_score must be within [0, 1], got %v", n.MinScore)
	}
	switch n.Type {
	case "log":
	case "slack":
		if n.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(n.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	case "webhook":
		if n.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"webhook\"")
		}
	default:
		return fmt.Errorf("notification.type must be \"log\", \"slack\" or \"webhook\", got %q", n.Type)
	}

	for i, p := range cfg.Terms.SalaryPatterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return fmt.Errorf("terms.salary_patterns[%d]: %w", i, err)
		}
		if re.NumSubexp() < 2 {
			return fmt.Errorf("terms.salary_patterns[%d]: need 2 capture groups", i)
		}
	}

	ids := make(map[string]bool, len(cfg.Companies))
	for i, c := range cfg.Companies {
		if c.ID == "" || c.Name == "" {
			return fmt.Errorf("companies[%d]: id and name are required", i)
		}
		if ids[c.ID] {
			return fmt.Errorf("companies[%d]: duplicate id %q", i, c.ID)
		}
		ids[c.ID] = true
		u, err := url.Parse(c.CareersURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("companies[%d] %q: careers_url must be an absolute URL", i, c.ID)
		}
	}

	return nil
}
