// Package notifier delivers alerts for postings that clear the score
// threshold and guarantees each posting is announced at most once per
// successful delivery.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amishk599/auros/internal/model"
)

// Alert is one qualified posting ready for delivery.
type Alert struct {
	CompanyName string
	Posting     model.Posting
}

// Webhook delivers a single alert. Implementations do not retry; a failed
// delivery leaves the posting eligible on a later scan.
type Webhook interface {
	Send(ctx context.Context, a Alert) error
}

// NotifiedMarker flips a posting's notified flag.
type NotifiedMarker interface {
	MarkNotified(ctx context.Context, postingID string) (bool, error)
}

// Dispatcher gates webhook delivery on the score threshold and the notified flag.
type Dispatcher struct {
	webhook   Webhook
	marker    NotifiedMarker
	threshold float64
	logger    *slog.Logger
}

// NewDispatcher returns a dispatcher that alerts on postings scoring at least threshold.
func NewDispatcher(webhook Webhook, marker NotifiedMarker, threshold float64, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		webhook:   webhook,
		marker:    marker,
		threshold: threshold,
		logger:    logger,
	}
}

// NotifyIfQualified sends an alert when the posting has not been notified yet
// and its score reaches the threshold. The notified flag is set only after a
// successful delivery, so a failure here is retried on a later sighting.
func (d *Dispatcher) NotifyIfQualified(ctx context.Context, p model.Posting, companyName string) (bool, error) {
	if p.Notified || p.MatchScore < d.threshold {
		return false, nil
	}

	if err := d.webhook.Send(ctx, Alert{CompanyName: companyName, Posting: p}); err != nil {
		d.logger.Warn("notification failed", "company", companyName, "title", p.Title, "url", p.URL, "error", err)
		return false, fmt.Errorf("notifying %s: %w", p.URL, err)
	}

	if _, err := d.marker.MarkNotified(ctx, p.ID); err != nil {
		return true, fmt.Errorf("marking %s notified: %w", p.URL, err)
	}
	d.logger.Info("notification sent", "company", companyName, "title", p.Title, "score", p.MatchScore)
	return true, nil
}

// SendTestMessage sends a dummy alert to verify the integration works.
func SendTestMessage(ctx context.Context, w Webhook) error {
	salaryMin, salaryMax, conf := 180000, 240000, 0.9
	yoeMin, yoeMax := 8, 12
	now := time.Now()
	return w.Send(ctx, Alert{
		CompanyName: "Auros Test",
		Posting: model.Posting{
			ID:               "test-001",
			Title:            "Test Notification (integration verified)",
			URL:              "https://example.com/jobs/test",
			YOEMin:           &yoeMin,
			YOEMax:           &yoeMax,
			YOESource:        model.SourceExtracted,
			SalaryMin:        &salaryMin,
			SalaryMax:        &salaryMax,
			SalarySource:     model.SourceFromText,
			SalaryConfidence: &conf,
			WorkMode:         model.WorkModeRemote,
			Location:         "Everywhere",
			MatchScore:       1,
			FirstSeen:        now,
			LastSeen:         now,
		},
	})
}

func salaryText(p model.Posting) string {
	if p.SalaryMin == nil || p.SalaryMax == nil || p.SalarySource == "" {
		return "Not disclosed"
	}
	return fmt.Sprintf("$%dk - $%dk (%s)", *p.SalaryMin/1000, *p.SalaryMax/1000, p.SalarySource)
}

func yoeText(p model.Posting) string {
	switch {
	case p.YOEMin != nil && p.YOEMax != nil:
		return fmt.Sprintf("%d-%d years", *p.YOEMin, *p.YOEMax)
	case p.YOEMin != nil:
		return fmt.Sprintf("%d+ years", *p.YOEMin)
	case p.YOEMax != nil:
		return fmt.Sprintf("up to %d years", *p.YOEMax)
	default:
		return "Not stated"
	}
}

func scorePercent(p model.Posting) int {
	return int(p.MatchScore*100 + 0.5)
}

// formatText renders an alert as Slack-flavoured mrkdwn.
func formatText(a Alert) string {
	p := a.Posting
	var b strings.Builder
	b.WriteString(":briefcase: *New Job Match Found*\n\n")
	fmt.Fprintf(&b, "*Company:* %s\n", a.CompanyName)
	fmt.Fprintf(&b, "*Title:* %s\n", p.Title)
	fmt.Fprintf(&b, "*Match Score:* %d%% :star:\n", scorePercent(p))
	fmt.Fprintf(&b, "*Salary:* %s\n", salaryText(p))
	fmt.Fprintf(&b, "*YOE:* %s\n", yoeText(p))
	fmt.Fprintf(&b, "*Mode:* %s\n\n", p.WorkMode)
	fmt.Fprintf(&b, "<%s|View Job Description>", p.URL)
	return b.String()
}
