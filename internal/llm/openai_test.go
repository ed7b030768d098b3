package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amishk599/auros/internal/model"
)

func makeTestServer(t *testing.T, statusCode int, body any) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, srv.Client()
}

func contentResponse(content string) chatResponse {
	return chatResponse{Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}}}}
}

func TestOpenAIComplete_Success(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK, contentResponse(`{"work_mode":"remote"}`))

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", client)
	got, err := provider.Complete(context.Background(), "extract this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"work_mode":"remote"}` {
		t.Errorf("got %q, want json string", got)
	}
}

func TestOpenAIComplete_HTTPErrorIsTyped(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusInternalServerError, map[string]string{"error": "server error"})

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", client)
	_, err := provider.Complete(context.Background(), "extract this")
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected HTTPError 500, got %v", err)
	}
}

func TestOpenAIComplete_RateLimitedCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", srv.Client())
	_, err := provider.Complete(context.Background(), "extract this")
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests || httpErr.RetryAfter != 3*time.Second {
		t.Errorf("got status %d retry-after %v", httpErr.StatusCode, httpErr.RetryAfter)
	}
}

func TestOpenAIComplete_EmptyChoices(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK, chatResponse{})

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", client)
	_, err := provider.Complete(context.Background(), "extract this")
	if err == nil {
		t.Fatal("expected error when LLM returns no choices")
	}
}

func TestOpenAIComplete_SetsAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(contentResponse("ok"))
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(srv.URL, "my-secret-key", "test-model", srv.Client())
	_, _ = provider.Complete(context.Background(), "hello")

	if gotAuth != "Bearer my-secret-key" {
		t.Errorf("Authorization header = %q, want %q", gotAuth, "Bearer my-secret-key")
	}
}

func TestOpenAIComplete_SendsJSONMode(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(contentResponse("{}"))
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(srv.URL, "key", "gpt-4o-mini", srv.Client())
	_, _ = provider.Complete(context.Background(), "extract this")

	if gotReq.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format.type = %q, want json_object", gotReq.ResponseFormat.Type)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", gotReq.Model)
	}
	if gotReq.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", gotReq.Temperature)
	}
}
