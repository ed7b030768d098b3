package scraper

import (
	"net/url"
	"strings"

	"github.com/amishk599/auros/internal/browser"
)

var (
	nonJobTextMarkers = []string{"privacy", "cookie", "terms", "policy", "benefits", "equal employment"}
	jobHrefMarkers    = []string{"/jobs/", "/job/", "/careers/", "greenhouse.io", "lever.co", "workdayjobs", "job"}
	jobTextMarkers    = []string{"manager", "program", "product", "technical", "tpm", "principal", "senior"}
)

// AllowList is a set of permitted destination domains. A host is allowed
// when it equals an entry or is a subdomain of one.
type AllowList struct {
	domains []string
}

// NewAllowList builds an allow-list from bare domain names.
func NewAllowList(domains ...string) AllowList {
	a := AllowList{}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			a.domains = append(a.domains, d)
		}
	}
	return a
}

// With returns a copy that also permits domain.
func (a AllowList) With(domain string) AllowList {
	out := AllowList{domains: append([]string(nil), a.domains...)}
	if d := strings.ToLower(strings.TrimSpace(domain)); d != "" {
		out.domains = append(out.domains, d)
	}
	return out
}

// Allows reports whether rawURL points at a permitted host over http(s).
func (a AllowList) Allows(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, d := range a.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// companyDomain is the registrable-looking part of the careers host with a
// leading "www." removed, so www.acme.com also admits jobs.acme.com.
func companyDomain(careersURL string) string {
	u, err := url.Parse(careersURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// looksLikeJobLink is a cheap heuristic for anchors that lead to a posting.
func looksLikeJobLink(href, text string) bool {
	h := strings.ToLower(href)
	t := strings.ToLower(text)
	for _, bad := range nonJobTextMarkers {
		if strings.Contains(t, bad) {
			return false
		}
	}
	for _, m := range jobHrefMarkers {
		if strings.Contains(h, m) {
			return true
		}
	}
	for _, m := range jobTextMarkers {
		if strings.Contains(t, m) {
			return true
		}
	}
	return false
}

// candidateLinks filters a listing page's anchors down to posting links that
// are allowed, plausible, wanted by the title filter, and not the listing
// page itself. Order is preserved and the result is capped at limit.
func candidateLinks(page *browser.Page, listingURL string, allow AllowList, wanted func(string) bool, limit int) (kept []browser.Link, dropped int) {
	self := strings.TrimRight(listingURL, "/")
	for _, l := range page.Links {
		if len(l.Text) < 3 || strings.TrimRight(l.Href, "/") == self {
			continue
		}
		if !allow.Allows(l.Href) {
			dropped++
			continue
		}
		if !looksLikeJobLink(l.Href, l.Text) || !wanted(l.Text) {
			continue
		}
		kept = append(kept, l)
		if len(kept) == limit {
			break
		}
	}
	return kept, dropped
}
