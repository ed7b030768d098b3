// Package ats lists postings through the public JSON APIs of hosted
// applicant tracking systems. The scraper prefers these over rendering pages.
package ats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/amishk599/auros/internal/model"
)

// Fetcher lists a board's postings with their full text.
type Fetcher interface {
	FetchPostings(ctx context.Context) ([]model.RawPosting, error)
}

// Board identifies a hosted job board.
type Board struct {
	ATS   string // greenhouse, lever, ashby, gem or workday
	Token string // board token or company slug; the cxs API base for workday
}

var localeRegex = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)

// Detect recognizes careers URLs hosted on a supported ATS.
func Detect(careersURL string) (Board, bool) {
	u, err := url.Parse(careersURL)
	if err != nil {
		return Board{}, false
	}
	host := strings.ToLower(u.Hostname())
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	first := ""
	if len(segs) > 0 {
		first = segs[0]
	}

	switch {
	case host == "boards.greenhouse.io" || host == "job-boards.greenhouse.io":
		if token := u.Query().Get("for"); token != "" {
			return Board{ATS: "greenhouse", Token: token}, true
		}
		if first != "" && first != "embed" {
			return Board{ATS: "greenhouse", Token: first}, true
		}
	case host == "jobs.lever.co":
		if first != "" {
			return Board{ATS: "lever", Token: first}, true
		}
	case host == "jobs.ashbyhq.com":
		if first != "" {
			return Board{ATS: "ashby", Token: first}, true
		}
	case host == "jobs.gem.com":
		if first != "" {
			return Board{ATS: "gem", Token: first}, true
		}
	case strings.HasSuffix(host, ".myworkdayjobs.com"):
		site := first
		if localeRegex.MatchString(site) && len(segs) > 1 {
			site = segs[1]
		}
		if site != "" && !localeRegex.MatchString(site) {
			tenant := strings.SplitN(host, ".", 2)[0]
			return Board{ATS: "workday", Token: fmt.Sprintf("https://%s/wday/cxs/%s/%s", host, tenant, site)}, true
		}
	}
	return Board{}, false
}

// New returns the fetcher for board. titleMatch, when non-nil, lets boards
// that need a request per posting skip titles that cannot match.
func New(board Board, client *http.Client, titleMatch func(string) bool) (Fetcher, error) {
	switch board.ATS {
	case "greenhouse":
		return NewGreenhouseAdapter(board.Token, client), nil
	case "lever":
		return NewLeverAdapter(board.Token, client), nil
	case "ashby":
		return NewAshbyAdapter(board.Token, client), nil
	case "gem":
		return NewGemAdapter(board.Token, client), nil
	case "workday":
		return NewWorkdayAdapter(board.Token, client, titleMatch), nil
	default:
		return nil, fmt.Errorf("unsupported ats %q", board.ATS)
	}
}

// getJSON fetches url and decodes the body into v. Non-200 responses are
// returned as *model.HTTPError so the retry policy can classify them.
func getJSON(ctx context.Context, client *http.Client, source, rawURL string, v any) error {
	return doJSON(ctx, client, source, http.MethodGet, rawURL, nil, v)
}

// postJSON sends body as JSON and decodes the response into v.
func postJSON(ctx context.Context, client *http.Client, source, rawURL string, body, v any) error {
	return doJSON(ctx, client, source, http.MethodPost, rawURL, body, v)
}

func doJSON(ctx context.Context, client *http.Client, source, method, rawURL string, body, v any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s marshal: %w", source, err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, payload)
	if err != nil {
		return fmt.Errorf("%s fetch: %w", source, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s fetch: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("%s fetch: unexpected status %d", source, resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s fetch: %w", source, err)
	}
	return nil
}

// composeText joins the labelled header lines and the description into the
// text handed to extraction.
func composeText(title, location, workplace, description string) string {
	var b strings.Builder
	b.WriteString(title)
	if location != "" {
		b.WriteString("\nLocation: ")
		b.WriteString(location)
	}
	if workplace != "" {
		b.WriteString("\nWorkplace: ")
		b.WriteString(workplace)
	}
	b.WriteString("\n\n")
	b.WriteString(description)
	return strings.TrimSpace(b.String())
}
