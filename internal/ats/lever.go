package ats

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/amishk599/auros/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

type leverCategories struct {
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

type leverList struct {
	Text    string `json:"text"`
	Content string `json:"content"` // HTML list items
}

type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Lists            []leverList     `json:"lists"`
	AdditionalPlain  string          `json:"additionalPlain"`
	Categories       leverCategories `json:"categories"`
	WorkplaceType    string          `json:"workplaceType"`
	HostedURL        string          `json:"hostedUrl"`
}

// LeverAdapter lists postings from the Lever public postings API.
type LeverAdapter struct {
	companySlug string
	client      *http.Client
}

// NewLeverAdapter creates a new adapter for a Lever board.
func NewLeverAdapter(companySlug string, client *http.Client) *LeverAdapter {
	return &LeverAdapter{companySlug: companySlug, client: client}
}

// FetchPostings retrieves every posting on the board with its description.
func (a *LeverAdapter) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s?mode=json", leverBaseURL, a.companySlug)

	var jobs []leverJob
	if err := getJSON(ctx, a.client, "lever "+a.companySlug, url, &jobs); err != nil {
		return nil, err
	}

	postings := make([]model.RawPosting, 0, len(jobs))
	for _, j := range jobs {
		if j.HostedURL == "" {
			continue
		}
		// Prefer allLocations if available, fallback to location.
		location := j.Categories.Location
		if len(j.Categories.AllLocations) > 0 {
			location = strings.Join(j.Categories.AllLocations, ", ")
		}

		var desc strings.Builder
		desc.WriteString(j.DescriptionPlain)
		for _, l := range j.Lists {
			desc.WriteString("\n\n")
			desc.WriteString(l.Text)
			desc.WriteString("\n")
			desc.WriteString(extractText(l.Content))
		}
		if j.AdditionalPlain != "" {
			desc.WriteString("\n\n")
			desc.WriteString(j.AdditionalPlain)
		}

		postings = append(postings, model.RawPosting{
			URL:   j.HostedURL,
			Title: j.Text,
			Text:  composeText(j.Text, location, j.WorkplaceType, desc.String()),
		})
	}
	return postings, nil
}
