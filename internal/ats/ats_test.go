package ats

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amishk599/auros/internal/model"
)

// --- helpers ---

// roundTripFunc adapts a function into an http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// serve starts a test server with handler and returns a client that sends
// every request to it, whatever the original host. The last requested URL is
// written to gotURL when non-nil.
func serve(t *testing.T, handler http.HandlerFunc, gotURL *string) *http.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if gotURL != nil {
				*gotURL = req.URL.String()
			}
			// Rewrite the URL to hit the test server instead.
			req.URL.Scheme = "http"
			req.URL.Host = srv.Listener.Addr().String()
			return http.DefaultTransport.RoundTrip(req)
		}),
	}
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		url    string
		want   Board
		wantOK bool
	}{
		{"https://boards.greenhouse.io/stripe", Board{"greenhouse", "stripe"}, true},
		{"https://job-boards.greenhouse.io/airbnb/jobs/123", Board{"greenhouse", "airbnb"}, true},
		{"https://boards.greenhouse.io/embed/job_board?for=datadog", Board{"greenhouse", "datadog"}, true},
		{"https://jobs.lever.co/atlassian", Board{"lever", "atlassian"}, true},
		{"https://jobs.ashbyhq.com/snowflake", Board{"ashby", "snowflake"}, true},
		{"https://jobs.gem.com/acme", Board{"gem", "acme"}, true},
		{"https://workday.wd5.myworkdayjobs.com/Workday", Board{"workday", "https://workday.wd5.myworkdayjobs.com/wday/cxs/workday/Workday"}, true},
		{"https://acme.wd1.myworkdayjobs.com/en-US/External/job/Austin/SRE_R1", Board{"workday", "https://acme.wd1.myworkdayjobs.com/wday/cxs/acme/External"}, true},
		{"https://acme.wd1.myworkdayjobs.com/en-US", Board{}, false},
		{"https://www.hashicorp.com/careers", Board{}, false},
		{"https://jobs.lever.co/", Board{}, false},
		{"::not a url", Board{}, false},
	}
	for _, tt := range tests {
		got, ok := Detect(tt.url)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Detect(%q) = %+v, %v; want %+v, %v", tt.url, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestGreenhouseFetchPostings_Success(t *testing.T) {
	payload := `{
		"jobs": [
			{
				"id": 12345,
				"title": "Senior Technical Program Manager",
				"location": {"name": "Remote, US"},
				"absolute_url": "https://boards.greenhouse.io/acme/jobs/12345",
				"content": "&lt;p&gt;Lead our AI platform.&lt;/p&gt;&lt;p&gt;$180,000 - $220,000&lt;/p&gt;"
			},
			{
				"id": 67890,
				"title": "No URL",
				"location": {"name": "Nowhere"}
			}
		]
	}`
	var gotURL string
	a := NewGreenhouseAdapter("acme", serve(t, jsonHandler(payload), &gotURL))

	postings, err := a.FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotURL != "https://boards-api.greenhouse.io/v1/boards/acme/jobs?content=true" {
		t.Errorf("requested %q", gotURL)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(postings))
	}
	p := postings[0]
	if p.URL != "https://boards.greenhouse.io/acme/jobs/12345" || p.Title != "Senior Technical Program Manager" {
		t.Errorf("unexpected posting %+v", p)
	}
	for _, want := range []string{"Location: Remote, US", "Lead our AI platform.", "$180,000 - $220,000"} {
		if !strings.Contains(p.Text, want) {
			t.Errorf("text %q missing %q", p.Text, want)
		}
	}
}

func TestGreenhouseFetchPostings_HTTPError(t *testing.T) {
	client := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}, nil)

	_, err := NewGreenhouseAdapter("acme", client).FetchPostings(context.Background())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected HTTPError 429, got %v", err)
	}
	if httpErr.RetryAfter.Seconds() != 30 {
		t.Errorf("RetryAfter = %v, want 30s", httpErr.RetryAfter)
	}
}

func TestGreenhouseFetchPostings_MalformedJSON(t *testing.T) {
	_, err := NewGreenhouseAdapter("acme", serve(t, jsonHandler("{broken"), nil)).FetchPostings(context.Background())
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestLeverFetchPostings_Success(t *testing.T) {
	payload := `[
		{
			"id": "abc",
			"text": "Staff SRE",
			"descriptionPlain": "Keep the lights on.",
			"lists": [{"text": "Requirements", "content": "<li>10+ years</li><li>Kubernetes</li>"}],
			"additionalPlain": "Pay: $200k-$250k",
			"categories": {"location": "SF", "allLocations": ["SF", "NYC"]},
			"workplaceType": "hybrid",
			"hostedUrl": "https://jobs.lever.co/acme/abc"
		}
	]`
	var gotURL string
	postings, err := NewLeverAdapter("acme", serve(t, jsonHandler(payload), &gotURL)).FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotURL != "https://api.lever.co/v0/postings/acme?mode=json" {
		t.Errorf("requested %q", gotURL)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(postings))
	}
	p := postings[0]
	if p.URL != "https://jobs.lever.co/acme/abc" || p.Title != "Staff SRE" {
		t.Errorf("unexpected posting %+v", p)
	}
	for _, want := range []string{"Location: SF, NYC", "Workplace: hybrid", "10+ years Kubernetes", "$200k-$250k"} {
		if !strings.Contains(p.Text, want) {
			t.Errorf("text %q missing %q", p.Text, want)
		}
	}
}

func TestAshbyFetchPostings_SkipsUnlisted(t *testing.T) {
	payload := `{"jobs": [
		{"title": "Principal PM", "location": "Remote", "jobUrl": "https://jobs.ashbyhq.com/acme/1", "isListed": true, "isRemote": true,
		 "descriptionPlain": "Own the roadmap.", "compensation": {"compensationTierSummary": "$190K – $240K"}},
		{"title": "Hidden", "jobUrl": "https://jobs.ashbyhq.com/acme/2", "isListed": false}
	]}`
	postings, err := NewAshbyAdapter("acme", serve(t, jsonHandler(payload), nil)).FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 listed posting, got %d", len(postings))
	}
	if !strings.Contains(postings[0].Text, "Workplace: Remote") || !strings.Contains(postings[0].Text, "Compensation: $190K – $240K") {
		t.Errorf("unexpected text %q", postings[0].Text)
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"greenhouse", "lever", "ashby", "gem", "workday"} {
		if _, err := New(Board{ATS: name, Token: "x"}, http.DefaultClient, nil); err != nil {
			t.Errorf("New(%s): %v", name, err)
		}
	}
	if _, err := New(Board{ATS: "taleo"}, http.DefaultClient, nil); err == nil {
		t.Error("expected error for unsupported ats")
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "double-encoded HTML from Greenhouse API",
			input: "This is the job description. &lt;p&gt;Any HTML included.&lt;/p&gt;",
			want:  "This is the job description. Any HTML included.",
		},
		{
			name:  "typical job description with nested tags and whitespace",
			input: "&lt;p&gt;We are hiring.&lt;/p&gt;\n&lt;ul&gt;\n  &lt;li&gt;Write code&lt;/li&gt;\n  &lt;li&gt;Review PRs&lt;/li&gt;\n&lt;/ul&gt;",
			want:  "We are hiring. Write code Review PRs",
		},
		{
			name:  "plain text with no HTML",
			input: "No tags here.",
			want:  "No tags here.",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := extractText(tc.input)
			if got != tc.want {
				t.Errorf("extractText(%q)\n got  %q\n want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestGemFetchPostings(t *testing.T) {
	var gotURL string
	client := serve(t, jsonHandler(`[
		{"title": "Staff Engineer", "location": {"name": "New York"}, "absolute_url": "https://jobs.gem.com/acme/1", "content_plain": "Own the platform."},
		{"title": "Designer", "location": {"name": "Remote"}, "absolute_url": "https://jobs.gem.com/acme/2", "content": "&lt;p&gt;Draw things.&lt;/p&gt;"},
		{"title": "No Link", "location": {"name": "Remote"}}
	]`), &gotURL)

	postings, err := NewGemAdapter("acme", client).FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotURL != "https://api.gem.com/job_board/v0/acme/job_posts/" {
		t.Errorf("requested %q", gotURL)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(postings))
	}
	if !strings.Contains(postings[0].Text, "Location: New York") || !strings.Contains(postings[0].Text, "Own the platform.") {
		t.Errorf("unexpected text %q", postings[0].Text)
	}
	if !strings.Contains(postings[1].Text, "Draw things.") {
		t.Errorf("html body not stripped: %q", postings[1].Text)
	}
}

func TestWorkdayFetchPostings(t *testing.T) {
	var detailPaths []string
	client := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/jobs"):
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("listing content type = %q", ct)
			}
			w.Write([]byte(`{"total": 3, "jobPostings": [
				{"title": "Staff Platform Engineer", "externalPath": "/job/Austin/Staff-Platform-Engineer_R1", "postedOn": "Posted Today"},
				{"title": "Recruiting Coordinator", "externalPath": "/job/Austin/Recruiting-Coordinator_R2", "postedOn": "Posted 2 Days Ago"},
				{"title": "Principal Engineer", "externalPath": "/job/Remote/Principal-Engineer_R3", "postedOn": "Posted 30+ Days Ago"}
			]}`))
		case r.Method == http.MethodGet:
			detailPaths = append(detailPaths, r.URL.Path)
			w.Write([]byte(`{"jobPostingInfo": {
				"title": "Staff Platform Engineer",
				"location": "Austin, TX",
				"additionalLocations": ["Remote, US"],
				"remoteType": "Hybrid",
				"jobDescription": "<p>Run our Kubernetes fleet.</p>",
				"externalUrl": "https://acme.wd1.myworkdayjobs.com/External/job/Austin/Staff-Platform-Engineer_R1"
			}}`))
		default:
			http.NotFound(w, r)
		}
	}, nil)

	engineers := func(title string) bool { return strings.Contains(title, "Engineer") }
	a := NewWorkdayAdapter("https://acme.wd1.myworkdayjobs.com/wday/cxs/acme/External", client, engineers)
	postings, err := a.FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(detailPaths) != 1 || detailPaths[0] != "/wday/cxs/acme/External/job/Austin/Staff-Platform-Engineer_R1" {
		t.Fatalf("detail requests = %v", detailPaths)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(postings))
	}
	p := postings[0]
	if p.URL != "https://acme.wd1.myworkdayjobs.com/External/job/Austin/Staff-Platform-Engineer_R1" {
		t.Errorf("URL = %q", p.URL)
	}
	for _, want := range []string{"Location: Austin, TX; Remote, US", "Workplace: Hybrid", "Run our Kubernetes fleet."} {
		if !strings.Contains(p.Text, want) {
			t.Errorf("text %q missing %q", p.Text, want)
		}
	}
}

func TestWorkdayFetchPostings_ListingError(t *testing.T) {
	client := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, nil)

	a := NewWorkdayAdapter("https://acme.wd1.myworkdayjobs.com/wday/cxs/acme/External", client, nil)
	_, err := a.FetchPostings(context.Background())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTPError 503, got %v", err)
	}
}

func TestDaysSincePosted(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"Posted Today", 0, true},
		{"Posted Yesterday", 1, true},
		{"Posted 1 Day Ago", 1, true},
		{"Posted 12 Days Ago", 12, true},
		{"Posted 30+ Days Ago", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := daysSincePosted(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("daysSincePosted(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
