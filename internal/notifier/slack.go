package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

var _ Webhook = (*SlackNotifier)(nil)

// SlackNotifier sends job alerts to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts each alert to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Send posts one Block Kit message for the alert.
func (s *SlackNotifier) Send(ctx context.Context, a Alert) error {
	body, err := json.Marshal(buildPayload(a))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	if err := postJSON(ctx, s.httpClient, s.webhookURL, body); err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	s.logger.Debug("slack message sent", "company", a.CompanyName, "title", a.Posting.Title)
	return nil
}

// Block Kit payload types.

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style"`
}

func buildPayload(a Alert) slackPayload {
	p := a.Posting

	location := p.Location
	if location == "" {
		location = "Unknown"
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "💼 " + a.CompanyName + ": " + p.Title},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Match Score:*\n%d%% :star:", scorePercent(p))},
				{Type: "mrkdwn", Text: "*Salary:*\n" + salaryText(p)},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*YOE:*\n" + yoeText(p)},
				{Type: "mrkdwn", Text: "*Mode:*\n" + capitalize(string(p.WorkMode))},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Location:*\n" + location},
			},
		},
		{
			Type: "actions",
			Elements: []slackElement{
				{
					Type:  "button",
					Text:  slackText{Type: "plain_text", Text: "View Job"},
					URL:   p.URL,
					Style: "primary",
				},
			},
		},
		{Type: "divider"},
	}

	return slackPayload{
		Text:   fmt.Sprintf("New job match: %s at %s (%d%%)", p.Title, a.CompanyName, scorePercent(p)),
		Blocks: blocks,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
