package ats

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amishk599/auros/internal/model"
)

const gemBaseURL = "https://api.gem.com/job_board/v0"

type gemJob struct {
	Title        string      `json:"title"`
	Location     gemLocation `json:"location"`
	AbsoluteURL  string      `json:"absolute_url"`
	Content      string      `json:"content"`
	ContentPlain string      `json:"content_plain"`
}

type gemLocation struct {
	Name string `json:"name"`
}

// GemAdapter lists postings from the Gem public job board API.
type GemAdapter struct {
	boardToken string
	client     *http.Client
}

// NewGemAdapter creates a new adapter for a Gem job board.
func NewGemAdapter(boardToken string, client *http.Client) *GemAdapter {
	return &GemAdapter{boardToken: boardToken, client: client}
}

// FetchPostings retrieves every post on the board. The plain-text body is
// preferred; boards that only publish HTML are stripped to text.
func (a *GemAdapter) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s/job_posts/", gemBaseURL, a.boardToken)

	var jobs []gemJob
	if err := getJSON(ctx, a.client, "gem "+a.boardToken, url, &jobs); err != nil {
		return nil, err
	}

	postings := make([]model.RawPosting, 0, len(jobs))
	for _, j := range jobs {
		if j.AbsoluteURL == "" {
			continue
		}
		desc := j.ContentPlain
		if desc == "" {
			desc = extractText(j.Content)
		}
		postings = append(postings, model.RawPosting{
			URL:   j.AbsoluteURL,
			Title: j.Title,
			Text:  composeText(j.Title, j.Location.Name, "", desc),
		})
	}
	return postings, nil
}
