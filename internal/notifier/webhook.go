package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/amishk599/auros/internal/model"
)

var _ Webhook = (*WebhookNotifier)(nil)

// WebhookNotifier posts a plain {"text": ...} payload, the shape accepted by
// Slack legacy webhooks and most chat integrations.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

// NewWebhookNotifier returns a notifier posting to url.
func NewWebhookNotifier(url string, httpClient *http.Client) *WebhookNotifier {
	return &WebhookNotifier{url: url, httpClient: httpClient}
}

// Send posts the alert. Any 2xx status counts as delivered.
func (w *WebhookNotifier) Send(ctx context.Context, a Alert) error {
	body, err := json.Marshal(map[string]string{"text": formatText(a)})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	return postJSON(ctx, w.httpClient, w.url, body)
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("webhook rejected message: %s", bytes.TrimSpace(msg)),
		}
	}
	return nil
}
