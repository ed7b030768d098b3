// Package browser renders careers pages into links and visible text.
//
// Rendering is scoped: a Session is opened per company and must be closed
// (typically with defer) once its pages have been read, so no page resources
// outlive the scrape that used them.
package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/auros/internal/model"
)

const (
	// MaxTextChars caps the normalized text kept per page.
	MaxTextChars = 50000

	maxBodyBytes     = 5 << 20
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Link is an anchor found on a rendered page. Href is absolute.
type Link struct {
	Text string
	Href string
}

// Page is a rendered page.
type Page struct {
	URL   string // final URL after redirects
	Title string
	Links []Link
	Text  string
}

// Browser opens rendering sessions.
type Browser interface {
	Open(ctx context.Context) (Session, error)
}

// Session renders pages. Close releases everything the session holds.
type Session interface {
	Render(ctx context.Context, url string) (*Page, error)
	Close() error
}

// HTTPBrowser renders pages with plain HTTP requests and goquery. It does not
// execute scripts.
type HTTPBrowser struct {
	transport http.RoundTripper
	timeout   time.Duration
	userAgent string
}

// NewHTTPBrowser creates a browser whose renders are bounded by timeout.
// A nil transport uses http.DefaultTransport.
func NewHTTPBrowser(transport http.RoundTripper, timeout time.Duration) *HTTPBrowser {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &HTTPBrowser{transport: transport, timeout: timeout, userAgent: defaultUserAgent}
}

// Open starts a session with its own cookie jar.
func (b *HTTPBrowser) Open(_ context.Context) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &httpSession{
		client:    &http.Client{Transport: b.transport, Jar: jar},
		timeout:   b.timeout,
		userAgent: b.userAgent,
	}, nil
}

type httpSession struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	closed    bool
}

func (s *httpSession) Render(ctx context.Context, rawURL string) (*Page, error) {
	if s.closed {
		return nil, fmt.Errorf("render %s: session closed", rawURL)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("render %s: unexpected status %d", rawURL, resp.StatusCode),
		}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("render %s: parse html: %w", rawURL, err)
	}
	return parse(doc, resp.Request.URL), nil
}

func (s *httpSession) Close() error {
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}

func parse(doc *goquery.Document, base *url.URL) *Page {
	page := &Page{
		URL:   base.String(),
		Title: NormalizeText(doc.Find("title").First().Text()),
	}

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs, ok := resolve(base, href)
		if !ok || seen[abs] {
			return
		}
		seen[abs] = true
		page.Links = append(page.Links, Link{Text: NormalizeText(a.Text()), Href: abs})
	})

	doc.Find("script, style, noscript, svg, template").Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	page.Text = Truncate(NormalizeText(body.Text()), MaxTextChars)
	return page
}

// resolve makes href absolute against base and drops non-web schemes and
// fragments.
func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

// NormalizeText collapses all whitespace runs into single spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
