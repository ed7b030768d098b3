package notifier

import (
	"context"
	"log/slog"
)

var _ Webhook = (*LogNotifier)(nil)

// LogNotifier writes alerts to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each alert via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the alert. It never fails.
func (n *LogNotifier) Send(_ context.Context, a Alert) error {
	p := a.Posting
	n.logger.Info("new job match",
		"company", a.CompanyName,
		"title", p.Title,
		"score", p.MatchScore,
		"salary", salaryText(p),
		"yoe", yoeText(p),
		"work_mode", p.WorkMode,
		"url", p.URL,
	)
	return nil
}
