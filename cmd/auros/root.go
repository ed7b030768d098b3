package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/amishk599/auros/internal/browser"
	"github.com/amishk599/auros/internal/config"
	"github.com/amishk599/auros/internal/extract"
	"github.com/amishk599/auros/internal/filter"
	"github.com/amishk599/auros/internal/llm"
	"github.com/amishk599/auros/internal/logging"
	"github.com/amishk599/auros/internal/model"
	"github.com/amishk599/auros/internal/notifier"
	"github.com/amishk599/auros/internal/ratelimit"
	"github.com/amishk599/auros/internal/retry"
	"github.com/amishk599/auros/internal/salary"
	"github.com/amishk599/auros/internal/scan"
	"github.com/amishk599/auros/internal/scoring"
	"github.com/amishk599/auros/internal/scraper"
	"github.com/amishk599/auros/internal/store"
)

const defaultConfigPath = "config.yaml"

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:          "auros",
	Short:        "Job radar for senior engineering roles",
	Long:         "Auros scans curated company career pages, extracts and scores postings with a language model, and alerts on strong matches.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: AUROS_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > AUROS_CONFIG env var > "./config.yaml".
// A missing file at the default path means built-in defaults only.
func loadConfig(path string) (*config.Config, error) {
	// .env is optional; values already in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("AUROS_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	return config.Load(path)
}

func setupLogger(cfg *config.Config, dbg bool) *slog.Logger {
	level := cfg.Logging.Level
	if dbg {
		level = "debug"
	}
	return logging.New(os.Stderr, level, cfg.Logging.Format, os.Getenv("NO_COLOR") != "")
}

// setup loads config and builds the logger, the common preamble of every command.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, setupLogger(cfg, debug), nil
}

// openStore opens the database and seeds the configured companies.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN, cfg.Scan.MaxDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	companies := make([]model.Company, 0, len(cfg.Companies))
	for _, c := range cfg.Companies {
		companies = append(companies, model.Company{
			ID:         c.ID,
			Name:       c.Name,
			CareersURL: c.CareersURL,
			Tier:       c.Tier,
			Enabled:    c.Enabled,
		})
	}
	if err := st.SeedCompanies(ctx, companies); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) notifier.Webhook {
	switch cfg.Notification.Type {
	case "slack":
		logger.Debug("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	case "webhook":
		logger.Debug("using webhook notifier")
		return notifier.NewWebhookNotifier(cfg.Notification.WebhookURL, httpClient)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// buildOrchestrator wires the scan pipeline on top of st.
func buildOrchestrator(cfg *config.Config, st *store.Store, logger *slog.Logger) (*scan.Orchestrator, error) {
	httpClient := &http.Client{Timeout: cfg.Scrape.PageTimeout}
	policy := retry.Policy{Attempts: cfg.Scrape.Retry.Attempts, BaseDelay: cfg.Scrape.Retry.BaseDelay}

	provider, err := llm.NewProvider(llm.ProviderConfig{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, err
	}
	extractor := extract.NewService(provider, policy, cfg.LLM.Timeout, logger)

	patterns := make([]salary.Pattern, 0, len(cfg.Terms.SalaryPatterns))
	for _, p := range cfg.Terms.SalaryPatterns {
		patterns = append(patterns, salary.Pattern{Expr: p.Pattern, Multiplier: p.Multiplier})
	}
	resolver, err := salary.NewResolver(patterns, extractor, cfg.Salary.MinConfidence, logger)
	if err != nil {
		return nil, err
	}

	engine := scoring.New(scoring.Options{
		TitleTerms:   cfg.Terms.Title,
		DomainTerms:  cfg.Terms.Domain,
		Saturation:   cfg.Scoring.DomainSaturation,
		TargetYOEMin: cfg.Scoring.TargetYOEMin,
		TargetYOEMax: cfg.Scoring.TargetYOEMax,
	})

	coordinator := scraper.NewCoordinator(
		browser.NewHTTPBrowser(nil, cfg.Scrape.PageTimeout),
		httpClient,
		ratelimit.NewPacer(cfg.Scrape.MinDelay, cfg.Scrape.MaxDelay),
		filter.NewTitleFilter(cfg.Terms.TitleFilter, cfg.Terms.TitleExclude),
		st,
		scraper.Options{
			MaxConcurrentPages: cfg.Scrape.MaxConcurrentPages,
			MaxJobsPerCompany:  cfg.Scrape.MaxJobsPerCompany,
			AllowedDomains:     cfg.Scrape.AllowedDomains,
			Retry:              policy,
		},
		logger,
	)

	webhook := setupNotifier(cfg, &http.Client{Timeout: notifyTimeout}, logger)

	return scan.New(scan.Deps{
		Store:     st,
		Scraper:   coordinator,
		Extractor: extractor,
		Salary:    resolver,
		Scorer:    engine,
		Notifier:  notifier.NewDispatcher(webhook, st, cfg.Notification.MinScore, logger),
		Checks:    preflightChecks(cfg),
	}, cfg.Scoring.PreferredWorkMode, logger), nil
}

// preflightChecks verify the external endpoints a scan depends on are configured.
func preflightChecks(cfg *config.Config) []scan.Check {
	return []scan.Check{
		func(context.Context) error {
			if cfg.LLM.BaseURL == "" || cfg.LLM.Model == "" {
				return errors.New("llm base_url and model are required")
			}
			return nil
		},
		func(context.Context) error {
			switch cfg.Notification.Type {
			case "slack", "webhook":
				if cfg.Notification.WebhookURL == "" {
					return fmt.Errorf("notification.webhook_url is required for %s notifier", cfg.Notification.Type)
				}
			}
			return nil
		},
		func(context.Context) error {
			if len(cfg.Companies) == 0 {
				return errors.New("no companies configured")
			}
			return nil
		},
	}
}
