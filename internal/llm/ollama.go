package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/amishk599/auros/internal/model"
)

// OllamaProvider calls a local Ollama server's native generate endpoint with
// JSON output enforced.
type OllamaProvider struct {
	client *resty.Client
	model  string
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaProvider creates a provider for the Ollama server at baseURL.
// timeout bounds every call.
func NewOllamaProvider(baseURL, model string, timeout time.Duration) *OllamaProvider {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &OllamaProvider{client: client, model: model}
}

// Complete sends prompt to /api/generate and returns the response text.
func (p *OllamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	var out generateResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(generateRequest{
			Model:  p.model,
			Prompt: prompt,
			Stream: false,
			Format: "json",
		}).
		SetResult(&out).
		SetError(&out).
		Post("/api/generate")
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}

	if resp.IsError() {
		msg := out.Error
		if msg == "" {
			msg = truncate(resp.String(), 200)
		}
		return "", &model.HTTPError{
			StatusCode: resp.StatusCode(),
			RetryAfter: model.ParseRetryAfter(resp.Header().Get("Retry-After")),
			Err:        fmt.Errorf("ollama: %s", msg),
		}
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}
	return out.Response, nil
}
