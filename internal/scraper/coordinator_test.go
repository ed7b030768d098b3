package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/auros/internal/ats"
	"github.com/amishk599/auros/internal/browser"
	"github.com/amishk599/auros/internal/filter"
	"github.com/amishk599/auros/internal/model"
	"github.com/amishk599/auros/internal/ratelimit"
	"github.com/amishk599/auros/internal/retry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBrowser serves pages from a map. A URL mapped to an error fails every time.
type fakeBrowser struct {
	mu       sync.Mutex
	pages    map[string]*browser.Page
	failures map[string]error
	calls    map[string]int
	delay    time.Duration
	opened   int
	closed   int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		pages:    map[string]*browser.Page{},
		failures: map[string]error{},
		calls:    map[string]int{},
	}
}

func (b *fakeBrowser) Open(context.Context) (browser.Session, error) {
	b.mu.Lock()
	b.opened++
	b.mu.Unlock()
	return &fakeSession{b: b}, nil
}

func (b *fakeBrowser) callCount(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[url]
}

type fakeSession struct{ b *fakeBrowser }

func (s *fakeSession) Render(_ context.Context, url string) (*browser.Page, error) {
	n := s.b.inFlight.Add(1)
	defer s.b.inFlight.Add(-1)
	for {
		m := s.b.maxInFlight.Load()
		if n <= m || s.b.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if s.b.delay > 0 {
		time.Sleep(s.b.delay)
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.calls[url]++
	if err, ok := s.b.failures[url]; ok {
		return nil, err
	}
	if p, ok := s.b.pages[url]; ok {
		return p, nil
	}
	return nil, &model.HTTPError{StatusCode: http.StatusNotFound}
}

func (s *fakeSession) Close() error {
	s.b.mu.Lock()
	s.b.closed++
	s.b.mu.Unlock()
	return nil
}

type fakeHealth struct {
	mu       sync.Mutex
	outcomes map[string]model.ScrapeOutcome
}

func (h *fakeHealth) RecordScrape(_ context.Context, id string, outcome model.ScrapeOutcome, _ time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outcomes == nil {
		h.outcomes = map[string]model.ScrapeOutcome{}
	}
	h.outcomes[id] = outcome
	return nil
}

type fakeFetcher struct {
	postings []model.RawPosting
	err      error
}

func (f *fakeFetcher) FetchPostings(context.Context) ([]model.RawPosting, error) {
	return f.postings, f.err
}

const careersURL = "https://acme.test/careers"

var acme = model.Company{ID: "acme", Name: "Acme", CareersURL: careersURL, Tier: 1, Enabled: true}

func newCoordinator(b browser.Browser, h HealthRecorder, opts Options) *Coordinator {
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.Policy{
			Attempts:  3,
			BaseDelay: time.Millisecond,
			Sleep:     func(context.Context, time.Duration) error { return nil },
		}
	}
	if opts.AllowedDomains == nil {
		opts.AllowedDomains = []string{"greenhouse.io", "lever.co"}
	}
	titles := filter.NewTitleFilter([]string{"tpm", "sre", "program", "senior", "principal"}, nil)
	return NewCoordinator(b, http.DefaultClient, ratelimit.NewPacer(0, 0), titles, h, opts, discardLogger())
}

func listing(links ...browser.Link) *browser.Page {
	return &browser.Page{URL: careersURL, Title: "Careers", Links: links, Text: "Open roles"}
}

func TestScrapeCompany_RenderPath(t *testing.T) {
	b := newFakeBrowser()
	b.pages[careersURL] = listing(
		browser.Link{Text: "Senior TPM", Href: "https://acme.test/jobs/1"},
		browser.Link{Text: "Staff SRE", Href: "https://boards.greenhouse.io/acme/jobs/2"},
		browser.Link{Text: "Senior Program Manager", Href: "https://evil.example.net/jobs/3"},
		browser.Link{Text: "Barista", Href: "https://acme.test/jobs/4"},
		browser.Link{Text: "Privacy policy", Href: "https://acme.test/privacy"},
	)
	b.pages["https://acme.test/jobs/1"] = &browser.Page{Title: "TPM", Text: "Senior TPM text"}
	b.pages["https://boards.greenhouse.io/acme/jobs/2"] = &browser.Page{Title: "SRE", Text: "Staff SRE text"}
	h := &fakeHealth{}

	res := newCoordinator(b, h, Options{MaxConcurrentPages: 3, MaxJobsPerCompany: 20}).ScrapeCompany(context.Background(), acme)

	require.NoError(t, res.Err)
	assert.Equal(t, model.ScrapeSuccess, res.Outcome)
	assert.Equal(t, []model.RawPosting{
		{URL: "https://acme.test/jobs/1", Title: "Senior TPM", Text: "Senior TPM text"},
		{URL: "https://boards.greenhouse.io/acme/jobs/2", Title: "Staff SRE", Text: "Staff SRE text"},
	}, res.Postings)
	assert.Zero(t, b.callCount("https://evil.example.net/jobs/3"), "links outside the allow-list must never be fetched")
	assert.Zero(t, b.callCount("https://acme.test/jobs/4"), "filtered titles must not be fetched")
	assert.Equal(t, b.opened, b.closed, "every session must be closed")
	assert.Equal(t, model.ScrapeSuccess, h.outcomes["acme"])
}

func TestScrapeCompany_ListingFailureExhaustsRetries(t *testing.T) {
	b := newFakeBrowser()
	b.failures[careersURL] = errors.New("connection reset")
	h := &fakeHealth{}

	res := newCoordinator(b, h, Options{MaxConcurrentPages: 3}).ScrapeCompany(context.Background(), acme)

	require.Error(t, res.Err)
	assert.Equal(t, model.ScrapeFailed, res.Outcome)
	assert.Empty(t, res.Postings)
	assert.Equal(t, 3, b.callCount(careersURL))
	assert.Equal(t, model.ScrapeFailed, h.outcomes["acme"])
	assert.Equal(t, 1, b.closed)
}

func TestScrapeCompany_PostingFailureIsSkipped(t *testing.T) {
	b := newFakeBrowser()
	b.pages[careersURL] = listing(
		browser.Link{Text: "Senior TPM", Href: "https://acme.test/jobs/1"},
		browser.Link{Text: "Principal TPM", Href: "https://acme.test/jobs/2"},
	)
	b.pages["https://acme.test/jobs/1"] = &browser.Page{Text: "ok"}
	b.failures["https://acme.test/jobs/2"] = &model.HTTPError{StatusCode: 503}
	h := &fakeHealth{}

	res := newCoordinator(b, h, Options{MaxConcurrentPages: 3}).ScrapeCompany(context.Background(), acme)

	require.NoError(t, res.Err)
	assert.Equal(t, model.ScrapeSuccess, res.Outcome)
	require.Len(t, res.Postings, 1)
	assert.Equal(t, "https://acme.test/jobs/1", res.Postings[0].URL)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "https://acme.test/jobs/2")
	assert.Equal(t, 3, b.callCount("https://acme.test/jobs/2"))
}

func TestScrapeCompany_RespectsConcurrencyLimit(t *testing.T) {
	b := newFakeBrowser()
	b.delay = 20 * time.Millisecond
	var links []browser.Link
	for i := 0; i < 8; i++ {
		href := fmt.Sprintf("https://acme.test/jobs/%d", i)
		links = append(links, browser.Link{Text: fmt.Sprintf("Senior TPM %d", i), Href: href})
		b.pages[href] = &browser.Page{Text: "ok"}
	}
	b.pages[careersURL] = listing(links...)

	res := newCoordinator(b, &fakeHealth{}, Options{MaxConcurrentPages: 2}).ScrapeCompany(context.Background(), acme)

	require.NoError(t, res.Err)
	assert.Len(t, res.Postings, 8)
	assert.LessOrEqual(t, b.maxInFlight.Load(), int32(2))
}

func TestScrapeCompany_CapsPostingsPerCompany(t *testing.T) {
	b := newFakeBrowser()
	var links []browser.Link
	for i := 0; i < 5; i++ {
		href := fmt.Sprintf("https://acme.test/jobs/%d", i)
		links = append(links, browser.Link{Text: "Senior TPM", Href: href})
		b.pages[href] = &browser.Page{Text: "ok"}
	}
	b.pages[careersURL] = listing(links...)

	res := newCoordinator(b, &fakeHealth{}, Options{MaxConcurrentPages: 3, MaxJobsPerCompany: 2}).ScrapeCompany(context.Background(), acme)

	assert.Len(t, res.Postings, 2)
	assert.Zero(t, b.callCount("https://acme.test/jobs/4"))
}

func TestScrapeCompany_ATSPath(t *testing.T) {
	company := model.Company{ID: "stripe", CareersURL: "https://boards.greenhouse.io/stripe", Tier: 1}
	c := newCoordinator(newFakeBrowser(), &fakeHealth{}, Options{MaxConcurrentPages: 3})
	c.newATS = func(board ats.Board) (ats.Fetcher, error) {
		assert.Equal(t, ats.Board{ATS: "greenhouse", Token: "stripe"}, board)
		return &fakeFetcher{postings: []model.RawPosting{
			{URL: "https://boards.greenhouse.io/stripe/jobs/1", Title: "Staff TPM", Text: "text"},
			{URL: "https://boards.greenhouse.io/stripe/jobs/2", Title: "Accountant", Text: "text"},
			{URL: "https://phish.example.com/jobs/3", Title: "Senior SRE", Text: "text"},
		}}, nil
	}

	res := c.ScrapeCompany(context.Background(), company)

	require.NoError(t, res.Err)
	require.Len(t, res.Postings, 1)
	assert.Equal(t, "https://boards.greenhouse.io/stripe/jobs/1", res.Postings[0].URL)
}

func TestScrapeCompany_ATSFailureFallsBackToRender(t *testing.T) {
	company := model.Company{ID: "stripe", CareersURL: "https://boards.greenhouse.io/stripe", Tier: 1}
	b := newFakeBrowser()
	b.pages[company.CareersURL] = &browser.Page{Links: []browser.Link{
		{Text: "Senior TPM", Href: "https://boards.greenhouse.io/stripe/jobs/9"},
	}}
	b.pages["https://boards.greenhouse.io/stripe/jobs/9"] = &browser.Page{Text: "rendered"}

	c := newCoordinator(b, &fakeHealth{}, Options{MaxConcurrentPages: 3})
	c.newATS = func(ats.Board) (ats.Fetcher, error) {
		return &fakeFetcher{err: &model.HTTPError{StatusCode: http.StatusNotFound}}, nil
	}

	res := c.ScrapeCompany(context.Background(), company)

	require.NoError(t, res.Err)
	require.Len(t, res.Postings, 1)
	assert.Equal(t, "rendered", res.Postings[0].Text)
}

func TestScrapeCompany_CancelledContext(t *testing.T) {
	b := newFakeBrowser()
	b.pages[careersURL] = listing()
	h := &fakeHealth{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newCoordinator(b, h, Options{MaxConcurrentPages: 1}).ScrapeCompany(ctx, acme)

	assert.Error(t, res.Err)
	_, recorded := h.outcomes["acme"]
	assert.False(t, recorded, "a cancelled scrape must not mark the company failed")
}
