package model

import (
	"strings"
	"time"
)

// WorkMode is the normalized work arrangement of a posting.
type WorkMode string

const (
	WorkModeRemote  WorkMode = "remote"
	WorkModeHybrid  WorkMode = "hybrid"
	WorkModeOnsite  WorkMode = "onsite"
	WorkModeUnclear WorkMode = "unclear"
)

// ParseWorkMode normalizes free text into a WorkMode. Anything unrecognized is unclear.
func ParseWorkMode(s string) WorkMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remote":
		return WorkModeRemote
	case "hybrid":
		return WorkModeHybrid
	case "onsite", "on-site", "on site", "in-office", "office":
		return WorkModeOnsite
	default:
		return WorkModeUnclear
	}
}

// PostingStatus is the user-managed triage status of a posting.
type PostingStatus string

const (
	StatusNew        PostingStatus = "new"
	StatusBookmarked PostingStatus = "bookmarked"
	StatusApplied    PostingStatus = "applied"
	StatusHidden     PostingStatus = "hidden"
)

// Provenance tags for extracted values.
const (
	SourceFromText  = "from_text"
	SourceEstimated = "estimated"
	SourceExtracted = "extracted"
)

// Posting is a job posting discovered on a company's careers site. URL is the
// natural key.
type Posting struct {
	ID              string
	CompanyID       string
	Title           string
	PrimaryFunction string
	URL             string

	YOEMin    *int
	YOEMax    *int
	YOESource string

	SalaryMin        *int
	SalaryMax        *int
	SalarySource     string
	SalaryConfidence *float64

	WorkMode       WorkMode
	Location       string
	MatchScore     float64
	RawDescription string
	Status         PostingStatus
	FirstSeen      time.Time
	LastSeen       time.Time
	Notified       bool
}

// SalaryEstimated reports whether the salary came from the estimation stage.
func (p Posting) SalaryEstimated() bool {
	return p.SalarySource == SourceEstimated
}

// RawPosting is what the scraper hands to the pipeline: a URL, a title and the
// rendered page text. Nothing has been extracted yet.
type RawPosting struct {
	URL   string
	Title string
	Text  string
}
