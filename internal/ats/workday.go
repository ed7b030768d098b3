package ats

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/amishk599/auros/internal/model"
)

const workdayPageSize = 20

type workdayListingRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

type workdayListingResponse struct {
	Total       int              `json:"total"`
	JobPostings []workdayListing `json:"jobPostings"`
}

type workdayListing struct {
	Title         string `json:"title"`
	ExternalPath  string `json:"externalPath"`
	LocationsText string `json:"locationsText"`
	PostedOn      string `json:"postedOn"`
}

type workdayDetailResponse struct {
	JobPostingInfo workdayJobDetail `json:"jobPostingInfo"`
}

type workdayJobDetail struct {
	Title               string   `json:"title"`
	Location            string   `json:"location"`
	RemoteType          string   `json:"remoteType"`
	JobDescription      string   `json:"jobDescription"` // HTML
	ExternalURL         string   `json:"externalUrl"`
	AdditionalLocations []string `json:"additionalLocations"`
}

// WorkdayAdapter lists postings from a Workday career site. Workday only
// returns descriptions per posting, so listings go through the title matcher
// and an age cutoff before any detail request is made.
type WorkdayAdapter struct {
	baseURL    string
	client     *http.Client
	titleMatch func(string) bool
}

// NewWorkdayAdapter creates a new adapter for the cxs API rooted at baseURL.
// A nil titleMatch fetches details for every recent listing.
func NewWorkdayAdapter(baseURL string, client *http.Client, titleMatch func(string) bool) *WorkdayAdapter {
	return &WorkdayAdapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     client,
		titleMatch: titleMatch,
	}
}

// FetchPostings pages through the listing endpoint, newest first, then
// fetches the detail of each listing that survives the title matcher and
// was posted within the last 30 days.
func (a *WorkdayAdapter) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	listings, err := a.fetchListings(ctx)
	if err != nil {
		return nil, err
	}

	var postings []model.RawPosting
	for _, l := range listings {
		if _, ok := daysSincePosted(l.PostedOn); !ok {
			continue
		}
		if a.titleMatch != nil && !a.titleMatch(l.Title) {
			continue
		}
		p, ok, err := a.fetchDetail(ctx, l)
		if err != nil {
			return nil, err
		}
		if ok {
			postings = append(postings, p)
		}
	}
	return postings, nil
}

func (a *WorkdayAdapter) fetchListings(ctx context.Context) ([]workdayListing, error) {
	var all []workdayListing
	for offset := 0; ; offset += workdayPageSize {
		body := workdayListingRequest{
			AppliedFacets: map[string]any{},
			Limit:         workdayPageSize,
			Offset:        offset,
		}
		var resp workdayListingResponse
		if err := postJSON(ctx, a.client, "workday listing", a.baseURL+"/jobs", body, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.JobPostings...)

		if len(resp.JobPostings) == 0 || offset+workdayPageSize >= resp.Total {
			break
		}
		// Listings come newest first; once a page ends past the cutoff the
		// rest are older still.
		last := resp.JobPostings[len(resp.JobPostings)-1]
		if _, ok := daysSincePosted(last.PostedOn); !ok {
			break
		}
	}
	return all, nil
}

func (a *WorkdayAdapter) fetchDetail(ctx context.Context, l workdayListing) (model.RawPosting, bool, error) {
	var resp workdayDetailResponse
	if err := getJSON(ctx, a.client, "workday detail", a.baseURL+l.ExternalPath, &resp); err != nil {
		return model.RawPosting{}, false, err
	}

	info := resp.JobPostingInfo
	if info.ExternalURL == "" {
		return model.RawPosting{}, false, nil
	}
	title := info.Title
	if title == "" {
		title = l.Title
	}
	location := info.Location
	if len(info.AdditionalLocations) > 0 {
		location += "; " + strings.Join(info.AdditionalLocations, "; ")
	}

	return model.RawPosting{
		URL:   info.ExternalURL,
		Title: title,
		Text:  composeText(title, location, info.RemoteType, extractText(info.JobDescription)),
	}, true, nil
}

var daysAgoRegex = regexp.MustCompile(`^Posted (\d+) Days? Ago$`)

// daysSincePosted reads Workday's relative posting date. "Posted 30+ Days
// Ago" and unrecognized values report false.
func daysSincePosted(postedOn string) (int, bool) {
	switch postedOn {
	case "Posted Today":
		return 0, true
	case "Posted Yesterday":
		return 1, true
	}
	m := daysAgoRegex.FindStringSubmatch(postedOn)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
