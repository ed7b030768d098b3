// Package scraper discovers postings on company careers sites.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/amishk599/auros/internal/ats"
	"github.com/amishk599/auros/internal/browser"
	"github.com/amishk599/auros/internal/model"
	"github.com/amishk599/auros/internal/ratelimit"
	"github.com/amishk599/auros/internal/retry"
)

// HealthRecorder stores the outcome of a company scrape.
type HealthRecorder interface {
	RecordScrape(ctx context.Context, companyID string, outcome model.ScrapeOutcome, at time.Time) error
}

// TitleMatcher decides whether a discovered title is worth fetching.
type TitleMatcher interface {
	Match(title string) bool
}

// Options configures a Coordinator.
type Options struct {
	MaxConcurrentPages int
	MaxJobsPerCompany  int
	AllowedDomains     []string
	Retry              retry.Policy
}

// Result is the outcome of scraping one company. Errors lists per-posting
// failures that did not fail the company.
type Result struct {
	Postings []model.RawPosting
	Outcome  model.ScrapeOutcome
	Err      error
	Errors   []string
}

// Coordinator fetches postings for companies. All pages rendered through one
// Coordinator share a single concurrency budget.
type Coordinator struct {
	browser    browser.Browser
	httpClient *http.Client
	sem        *semaphore.Weighted
	pacer      *ratelimit.Pacer
	filter     TitleMatcher
	health     HealthRecorder
	allow      AllowList
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
	newATS     func(ats.Board) (ats.Fetcher, error)
}

// NewCoordinator creates a Coordinator. httpClient is used for ATS APIs.
func NewCoordinator(b browser.Browser, httpClient *http.Client, pacer *ratelimit.Pacer, filter TitleMatcher, health HealthRecorder, opts Options, logger *slog.Logger) *Coordinator {
	if opts.MaxConcurrentPages < 1 {
		opts.MaxConcurrentPages = 1
	}
	if opts.MaxJobsPerCompany < 1 {
		opts.MaxJobsPerCompany = 20
	}
	return &Coordinator{
		browser:    b,
		httpClient: httpClient,
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrentPages)),
		pacer:      pacer,
		filter:     filter,
		health:     health,
		allow:      NewAllowList(opts.AllowedDomains...),
		opts:       opts,
		logger:     logger,
		now:        time.Now,
		newATS: func(b ats.Board) (ats.Fetcher, error) {
			return ats.New(b, httpClient, filter.Match)
		},
	}
}

// ScrapeCompany returns the company's candidate postings. Listing failures
// that survive the retry policy fail the company; a single posting page that
// cannot be fetched is skipped and reported in Result.Errors. The outcome is
// recorded on the company either way.
func (c *Coordinator) ScrapeCompany(ctx context.Context, company model.Company) Result {
	allow := c.allow.With(companyDomain(company.CareersURL))
	log := c.logger.With("company", company.ID)

	res := c.scrape(ctx, company, allow, log)
	if res.Err != nil {
		res.Outcome = model.ScrapeFailed
	} else {
		res.Outcome = model.ScrapeSuccess
	}

	// A scrape cut short by cancellation says nothing about the company.
	if res.Err == nil || ctx.Err() == nil {
		if err := c.health.RecordScrape(ctx, company.ID, res.Outcome, c.now()); err != nil {
			log.Error("recording scrape outcome", "error", err)
		}
	}
	return res
}

func (c *Coordinator) scrape(ctx context.Context, company model.Company, allow AllowList, log *slog.Logger) Result {
	if board, ok := ats.Detect(company.CareersURL); ok {
		postings, err := c.fromATS(ctx, company, board, allow)
		if err == nil {
			log.Info("scraped via ats api", "ats", board.ATS, "postings", len(postings))
			return Result{Postings: postings}
		}
		if ctx.Err() != nil {
			return Result{Err: err}
		}
		log.Warn("ats api failed, falling back to page render", "ats", board.ATS, "error", err)
	}
	return c.fromPages(ctx, company, allow, log)
}

func (c *Coordinator) fromATS(ctx context.Context, company model.Company, board ats.Board, allow AllowList) ([]model.RawPosting, error) {
	fetcher, err := c.newATS(board)
	if err != nil {
		return nil, err
	}
	all, err := retry.Do(ctx, c.opts.Retry, c.logger, "ats "+board.ATS, func(ctx context.Context) ([]model.RawPosting, error) {
		if err := c.acquire(ctx, company.ID); err != nil {
			return nil, err
		}
		defer c.sem.Release(1)
		return fetcher.FetchPostings(ctx)
	})
	if err != nil {
		return nil, err
	}

	var out []model.RawPosting
	for _, p := range all {
		if !allow.Allows(p.URL) || !c.filter.Match(p.Title) {
			continue
		}
		p.Text = browser.Truncate(p.Text, browser.MaxTextChars)
		out = append(out, p)
		if len(out) == c.opts.MaxJobsPerCompany {
			break
		}
	}
	return out, nil
}

func (c *Coordinator) fromPages(ctx context.Context, company model.Company, allow AllowList, log *slog.Logger) Result {
	if !allow.Allows(company.CareersURL) {
		return Result{Err: fmt.Errorf("careers url %q is not an http(s) url", company.CareersURL)}
	}

	sess, err := c.browser.Open(ctx)
	if err != nil {
		return Result{Err: fmt.Errorf("opening browser session: %w", err)}
	}
	defer sess.Close()

	listing, err := c.render(ctx, sess, company.ID, company.CareersURL)
	if err != nil {
		return Result{Err: fmt.Errorf("listing page: %w", err)}
	}

	links, dropped := candidateLinks(listing, company.CareersURL, allow, c.filter.Match, c.opts.MaxJobsPerCompany)
	if dropped > 0 {
		log.Debug("dropped links outside allow-list", "count", dropped)
	}

	postings := make([]*model.RawPosting, len(links))
	var mu sync.Mutex
	var errs []string
	g, gctx := errgroup.WithContext(ctx)
	for i, link := range links {
		g.Go(func() error {
			page, err := c.render(gctx, sess, company.ID, link.Href)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("fetch_job_failed", "url", link.Href, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Sprintf("%s: fetch %s: %v", company.ID, link.Href, err))
				mu.Unlock()
				return nil
			}
			title := link.Text
			if title == "" {
				title = page.Title
			}
			postings[i] = &model.RawPosting{URL: link.Href, Title: title, Text: page.Text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{Err: err, Errors: errs}
	}

	res := Result{Errors: errs}
	for _, p := range postings {
		if p != nil {
			res.Postings = append(res.Postings, *p)
		}
	}
	log.Info("scraped via page render", "links", len(links), "postings", len(res.Postings))
	return res
}

// render fetches one page under pacing, the shared concurrency budget and
// the retry policy.
func (c *Coordinator) render(ctx context.Context, sess browser.Session, companyID, url string) (*browser.Page, error) {
	return retry.Do(ctx, c.opts.Retry, c.logger, "render", func(ctx context.Context) (*browser.Page, error) {
		if err := c.acquire(ctx, companyID); err != nil {
			return nil, err
		}
		defer c.sem.Release(1)
		return sess.Render(ctx, url)
	})
}

// acquire waits for the company's pacing slot and then for a page slot.
func (c *Coordinator) acquire(ctx context.Context, companyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.pacer.Wait(ctx, companyID); err != nil {
		return err
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for page slot: %w", err)
	}
	return nil
}
