// Package scan drives one end-to-end pass over all enabled companies:
// scrape, dedupe, extract, resolve salary, score, persist and notify. The
// persisted scan state makes the pass single-flight, pollable and
// cooperatively cancellable.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amishk599/auros/internal/extract"
	"github.com/amishk599/auros/internal/model"
	"github.com/amishk599/auros/internal/salary"
	"github.com/amishk599/auros/internal/scoring"
	"github.com/amishk599/auros/internal/scraper"
)

// Store is the persistence the orchestrator needs.
type Store interface {
	EnabledCompanies(ctx context.Context) ([]model.Company, error)

	PostingByURL(ctx context.Context, url string) (model.Posting, error)
	InsertPosting(ctx context.Context, p *model.Posting) error
	TouchPosting(ctx context.Context, id string, seenAt time.Time, score float64, rawText string) error

	TryBeginScan(ctx context.Context, total int) (model.ScanHandle, model.ScanState, error)
	ClaimNextCompany(ctx context.Context, h model.ScanHandle) (bool, error)
	UpdateProgress(ctx context.Context, h model.ScanHandle, p model.Progress) error
	Complete(ctx context.Context, h model.ScanHandle, p model.Progress, cancelled bool) (model.ScanLog, error)
	RequestCancellation(ctx context.Context) (model.CancelResult, error)
	CurrentStatus(ctx context.Context) (model.ScanState, error)
}

// Scraper returns candidate postings for a company.
type Scraper interface {
	ScrapeCompany(ctx context.Context, company model.Company) scraper.Result
}

// Extractor turns raw posting text into structured attributes.
type Extractor interface {
	Extract(ctx context.Context, text string) (extract.Attributes, error)
}

// SalaryResolver finds or estimates a salary range.
type SalaryResolver interface {
	Resolve(ctx context.Context, in salary.Input) (salary.Result, error)
}

// Scorer computes the match score.
type Scorer interface {
	Score(in scoring.Input, tier int, preferredMode string) float64
}

// Notifier alerts on qualified postings.
type Notifier interface {
	NotifyIfQualified(ctx context.Context, p model.Posting, companyName string) (bool, error)
}

// Check verifies a piece of external configuration before a scan starts.
type Check func(ctx context.Context) error

// Deps are the collaborators of an Orchestrator. All but Checks are required.
type Deps struct {
	Store     Store
	Scraper   Scraper
	Extractor Extractor
	Salary    SalaryResolver
	Scorer    Scorer
	Notifier  Notifier
	Checks    []Check
}

// Orchestrator runs scans.
type Orchestrator struct {
	deps          Deps
	preferredMode string
	logger        *slog.Logger
	now           func() time.Time
	wg            sync.WaitGroup
}

// New returns an orchestrator. preferredMode is the work-mode preference
// handed to the scorer ("any" disables it).
func New(deps Deps, preferredMode string, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		deps:          deps,
		preferredMode: preferredMode,
		logger:        logger,
		now:           time.Now,
	}
}

// Preflight verifies the orchestrator is fully wired and every configured
// check passes. It never touches scan state.
func (o *Orchestrator) Preflight(ctx context.Context) error {
	d := o.deps
	required := []struct {
		name string
		set  bool
	}{
		{"store", d.Store != nil},
		{"scraper", d.Scraper != nil},
		{"extractor", d.Extractor != nil},
		{"salary resolver", d.Salary != nil},
		{"scorer", d.Scorer != nil},
		{"notifier", d.Notifier != nil},
	}
	for _, r := range required {
		if !r.set {
			return fmt.Errorf("%w: no %s configured", model.ErrMisconfigured, r.name)
		}
	}
	for _, check := range d.Checks {
		if err := check(ctx); err != nil {
			return fmt.Errorf("%w: %v", model.ErrMisconfigured, err)
		}
	}
	return nil
}

// Run executes one scan in the foreground. If another scan holds the running
// state it returns model.ErrAlreadyRunning without doing any work.
func (o *Orchestrator) Run(ctx context.Context) (model.ScanLog, error) {
	h, companies, _, err := o.begin(ctx)
	if err != nil {
		return model.ScanLog{}, err
	}
	return o.execute(ctx, h, companies)
}

// Trigger starts a scan in the background and returns the current snapshot.
// While a scan is running it returns that scan's snapshot instead of starting
// another. ctx bounds the background scan, not just this call.
func (o *Orchestrator) Trigger(ctx context.Context) (model.ScanState, error) {
	h, companies, snapshot, err := o.begin(ctx)
	if errors.Is(err, model.ErrAlreadyRunning) {
		o.logger.Info("scan already running", "scan_id", snapshot.ScanID)
		return snapshot, nil
	}
	if err != nil {
		return model.ScanState{}, err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if _, err := o.execute(ctx, h, companies); err != nil {
			o.logger.Error("background scan failed", "scan_id", h.ScanID, "error", err)
		}
	}()
	return o.deps.Store.CurrentStatus(ctx)
}

// Cancel requests cooperative cancellation of the running scan. The company
// in flight finishes; companies not yet started are skipped.
func (o *Orchestrator) Cancel(ctx context.Context) (model.CancelResult, error) {
	res, err := o.deps.Store.RequestCancellation(ctx)
	if err != nil {
		return model.CancelResult{}, err
	}
	if !res.Cancelled {
		return res, model.ErrNoScanRunning
	}
	o.logger.Info("scan cancellation requested", "units_skipped", res.UnitsSkipped)
	return res, nil
}

// Status returns the current scan snapshot.
func (o *Orchestrator) Status(ctx context.Context) (model.ScanState, error) {
	return o.deps.Store.CurrentStatus(ctx)
}

// Wait blocks until background scans started by Trigger have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) begin(ctx context.Context) (model.ScanHandle, []model.Company, model.ScanState, error) {
	if err := o.Preflight(ctx); err != nil {
		return model.ScanHandle{}, nil, model.ScanState{}, err
	}
	companies, err := o.deps.Store.EnabledCompanies(ctx)
	if err != nil {
		return model.ScanHandle{}, nil, model.ScanState{}, fmt.Errorf("loading companies: %w", err)
	}
	h, prev, err := o.deps.Store.TryBeginScan(ctx, len(companies))
	if err != nil {
		return model.ScanHandle{}, nil, prev, err
	}
	if prev.Stale {
		o.logger.Warn("reclaimed stale scan", "previous_scan_id", prev.ScanID, "started_at", prev.StartedAt)
	}
	return h, companies, prev, nil
}

func (o *Orchestrator) execute(ctx context.Context, h model.ScanHandle, companies []model.Company) (model.ScanLog, error) {
	log := o.logger.With("scan_id", h.ScanID)
	log.Info("scan_started", "companies", len(companies))

	// State writes outlive ctx so a shutdown mid-company still reaches Complete
	// and never leaves the row running.
	stateCtx := context.WithoutCancel(ctx)

	var p model.Progress
	cancelled := false
	for _, c := range companies {
		if ctx.Err() != nil {
			log.Info("scan interrupted", "remaining", len(companies)-p.CompaniesScanned)
			cancelled = true
			break
		}
		ok, err := o.deps.Store.ClaimNextCompany(stateCtx, h)
		if errors.Is(err, model.ErrScanSuperseded) {
			return model.ScanLog{}, fmt.Errorf("claiming %s: %w", c.ID, err)
		}
		if err != nil {
			log.Error("claiming company failed", "company", c.ID, "error", err)
			p.Errors = append(p.Errors, fmt.Sprintf("%s: claiming: %v", c.ID, err))
			break
		}
		if !ok {
			log.Info("scan cancelled", "remaining", len(companies)-p.CompaniesScanned)
			cancelled = true
			break
		}

		o.processCompany(ctx, log, c, &p)
		p.CompaniesScanned++

		err = o.deps.Store.UpdateProgress(stateCtx, h, p)
		if errors.Is(err, model.ErrScanSuperseded) {
			return model.ScanLog{}, fmt.Errorf("recording progress: %w", err)
		}
		if err != nil {
			// The next update or Complete carries the same counters.
			log.Warn("recording progress failed", "error", err)
		}
	}

	scanLog, err := o.deps.Store.Complete(stateCtx, h, p, cancelled)
	if err != nil {
		return model.ScanLog{}, fmt.Errorf("completing scan: %w", err)
	}
	log.Info("scan_completed",
		"companies_scanned", scanLog.CompaniesScanned,
		"companies_skipped", scanLog.CompaniesSkipped,
		"jobs_found", scanLog.JobsFound,
		"jobs_new", scanLog.JobsNew,
		"errors", len(scanLog.Errors),
		"cancelled", scanLog.Cancelled,
		"duration", scanLog.CompletedAt.Sub(scanLog.StartedAt).Round(time.Second).String(),
	)
	return scanLog, nil
}

func (o *Orchestrator) processCompany(ctx context.Context, log *slog.Logger, c model.Company, p *model.Progress) {
	res := o.deps.Scraper.ScrapeCompany(ctx, c)
	p.Errors = append(p.Errors, res.Errors...)
	if res.Outcome == model.ScrapeFailed {
		log.Warn("scan_company_failed", "company", c.ID, "error", res.Err)
		p.Errors = append(p.Errors, fmt.Sprintf("%s: %v", c.ID, res.Err))
		return
	}

	p.JobsFound += len(res.Postings)
	for _, raw := range res.Postings {
		if ctx.Err() != nil {
			return
		}
		if err := o.processPosting(ctx, log, c, raw, p); err != nil {
			p.Errors = append(p.Errors, fmt.Sprintf("%s: %s: %v", c.ID, raw.URL, err))
		}
	}
}

// processPosting runs one posting through the pipeline. The returned error is
// recorded against the scan; it never stops the scan.
func (o *Orchestrator) processPosting(ctx context.Context, log *slog.Logger, c model.Company, raw model.RawPosting, p *model.Progress) error {
	existing, err := o.deps.Store.PostingByURL(ctx, raw.URL)
	if err == nil {
		return o.resight(ctx, log, c, existing, raw, p)
	}
	if !errors.Is(err, model.ErrNotFound) {
		return err
	}

	attrs, err := o.deps.Extractor.Extract(ctx, raw.Text)
	if err != nil {
		log.Warn("llm_extract_failed", "company", c.ID, "url", raw.URL, "error", err)
		return fmt.Errorf("extracting: %w", err)
	}

	sal, err := o.deps.Salary.Resolve(ctx, salary.Input{Title: raw.Title, Company: c.Name, Text: raw.Text})
	if err != nil {
		log.Warn("salary estimation failed", "company", c.ID, "url", raw.URL, "error", err)
		p.Errors = append(p.Errors, fmt.Sprintf("%s: %s: salary: %v", c.ID, raw.URL, err))
	}

	now := o.now()
	posting := model.Posting{
		CompanyID:       c.ID,
		Title:           raw.Title,
		PrimaryFunction: attrs.PrimaryFunction,
		URL:             raw.URL,
		YOEMin:          attrs.YOEMin,
		YOEMax:          attrs.YOEMax,
		WorkMode:        attrs.WorkMode,
		Location:        attrs.Location,
		RawDescription:  raw.Text,
		Status:          model.StatusNew,
		FirstSeen:       now,
		LastSeen:        now,
	}
	if attrs.YOEMin != nil || attrs.YOEMax != nil {
		posting.YOESource = model.SourceExtracted
	}
	if sal.Found {
		lo, hi, conf := sal.Min, sal.Max, sal.Confidence
		posting.SalaryMin = &lo
		posting.SalaryMax = &hi
		posting.SalarySource = sal.Source
		posting.SalaryConfidence = &conf
	}
	posting.MatchScore = o.deps.Scorer.Score(scoreInput(posting), c.Tier, o.preferredMode)

	if err := o.deps.Store.InsertPosting(ctx, &posting); err != nil {
		if errors.Is(err, model.ErrPostingExists) {
			// Another writer stored the URL first.
			return nil
		}
		return err
	}
	p.JobsNew++
	log.Debug("new posting", "company", c.ID, "title", posting.Title, "score", posting.MatchScore)

	o.notify(ctx, log, c, posting, p)
	return nil
}

// resight refreshes a known posting: re-score from the stored attributes and
// current text, move last_seen, and give a pending notification another try.
// User-owned fields are never rewritten.
func (o *Orchestrator) resight(ctx context.Context, log *slog.Logger, c model.Company, existing model.Posting, raw model.RawPosting, p *model.Progress) error {
	existing.RawDescription = raw.Text
	score := o.deps.Scorer.Score(scoreInput(existing), c.Tier, o.preferredMode)
	if err := o.deps.Store.TouchPosting(ctx, existing.ID, o.now(), score, raw.Text); err != nil {
		return err
	}
	existing.MatchScore = score
	o.notify(ctx, log, c, existing, p)
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, log *slog.Logger, c model.Company, posting model.Posting, p *model.Progress) {
	if _, err := o.deps.Notifier.NotifyIfQualified(ctx, posting, c.Name); err != nil {
		log.Warn("notification failed", "company", c.ID, "url", posting.URL, "error", err)
		p.Errors = append(p.Errors, fmt.Sprintf("%s: %s: notify: %v", c.ID, posting.URL, err))
	}
}

func scoreInput(p model.Posting) scoring.Input {
	return scoring.Input{
		Title:    p.Title,
		Text:     p.RawDescription,
		YOEMin:   p.YOEMin,
		YOEMax:   p.YOEMax,
		WorkMode: p.WorkMode,
	}
}
