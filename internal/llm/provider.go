// Package llm talks to language models. Callers see a single Complete
// operation that returns the raw model text.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider sends a prompt to an LLM and returns the raw text response.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderConfig selects and configures a Provider.
type ProviderConfig struct {
	Provider string // "ollama" or "openai"
	BaseURL  string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// NewProvider builds the provider named in cfg.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "openai":
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, &http.Client{Timeout: cfg.Timeout}), nil
	default:
		return nil, &UnknownProviderError{Name: cfg.Provider}
	}
}

// UnknownProviderError is returned by NewProvider for an unsupported provider name.
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown llm provider %q", e.Name)
}
