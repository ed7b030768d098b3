package ats

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amishk599/auros/internal/model"
)

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

type ashbyJob struct {
	Title            string `json:"title"`
	Location         string `json:"location"`
	JobURL           string `json:"jobUrl"`
	IsListed         bool   `json:"isListed"`
	IsRemote         bool   `json:"isRemote"`
	WorkplaceType    string `json:"workplaceType"`
	DescriptionPlain string `json:"descriptionPlain"`
	Compensation     *struct {
		Summary string `json:"compensationTierSummary"`
	} `json:"compensation"`
}

type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

// AshbyAdapter lists postings from the Ashby public job board API.
type AshbyAdapter struct {
	boardToken string
	client     *http.Client
}

// NewAshbyAdapter creates a new adapter for an Ashby job board.
func NewAshbyAdapter(boardToken string, client *http.Client) *AshbyAdapter {
	return &AshbyAdapter{boardToken: boardToken, client: client}
}

// FetchPostings retrieves every listed job with its description. The
// compensation summary, when published, is appended so the salary patterns
// can find it.
func (a *AshbyAdapter) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s?includeCompensation=true", ashbyBaseURL, a.boardToken)

	var resp ashbyResponse
	if err := getJSON(ctx, a.client, "ashby "+a.boardToken, url, &resp); err != nil {
		return nil, err
	}

	postings := make([]model.RawPosting, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		if !j.IsListed || j.JobURL == "" {
			continue
		}
		workplace := j.WorkplaceType
		if workplace == "" && j.IsRemote {
			workplace = "Remote"
		}
		desc := j.DescriptionPlain
		if j.Compensation != nil && j.Compensation.Summary != "" {
			desc += "\n\nCompensation: " + j.Compensation.Summary
		}
		postings = append(postings, model.RawPosting{
			URL:   j.JobURL,
			Title: j.Title,
			Text:  composeText(j.Title, j.Location, workplace, desc),
		})
	}
	return postings, nil
}
