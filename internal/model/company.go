package model

import "time"

// ScrapeOutcome records how the last scrape of a company went.
type ScrapeOutcome string

const (
	ScrapeSuccess ScrapeOutcome = "success"
	ScrapeFailed  ScrapeOutcome = "failed"
)

// Company is a curated scan target.
type Company struct {
	ID           string
	Name         string
	CareersURL   string
	Tier         int // 1 is most preferred
	Enabled      bool
	LastScraped  *time.Time
	ScrapeStatus ScrapeOutcome // empty until the first scrape
}
