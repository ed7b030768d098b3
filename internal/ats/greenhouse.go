package ats

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amishk599/auros/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

type greenhouseJob struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Location    greenhouseLocation `json:"location"`
	AbsoluteURL string             `json:"absolute_url"`
	Content     string             `json:"content"` // HTML-encoded description
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter lists postings from the Greenhouse public boards API.
type GreenhouseAdapter struct {
	boardToken string
	client     *http.Client
}

// NewGreenhouseAdapter creates a new adapter for a Greenhouse board.
func NewGreenhouseAdapter(boardToken string, client *http.Client) *GreenhouseAdapter {
	return &GreenhouseAdapter{boardToken: boardToken, client: client}
}

// FetchPostings retrieves every job on the board with its description.
func (a *GreenhouseAdapter) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s/jobs?content=true", greenhouseBaseURL, a.boardToken)

	var resp greenhouseResponse
	if err := getJSON(ctx, a.client, "greenhouse "+a.boardToken, url, &resp); err != nil {
		return nil, err
	}

	postings := make([]model.RawPosting, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		if j.AbsoluteURL == "" {
			continue
		}
		postings = append(postings, model.RawPosting{
			URL:   j.AbsoluteURL,
			Title: j.Title,
			Text:  composeText(j.Title, j.Location.Name, "", extractText(j.Content)),
		})
	}
	return postings, nil
}
