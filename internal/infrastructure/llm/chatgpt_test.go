package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsScanner/internal/config"
	"NewsScanner/internal/ports"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotRequest completionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decode request: %v", err)
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" a concise summary "}}]}`))
	}))
	defer server.Close()

	client := NewChatGPTClient(config.ChatGPTConfig{
		Endpoint: server.URL,
		Model:    "gpt-4.1",
		APIKey:   "test-key",
	})

	text, err := client.Summarize(context.Background(), "summarize this")
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}

	if text != "a concise summary" {
		t.Fatalf("unexpected summary: %q", text)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotRequest.Model != "gpt-4.1" {
		t.Fatalf("unexpected model: %q", gotRequest.Model)
	}
	if len(gotRequest.Messages) != 1 || gotRequest.Messages[0].Role != "user" {
		t.Fatalf("expected a single user message, got %+v", gotRequest.Messages)
	}
	if gotRequest.Messages[0].Content != "summarize this" {
		t.Fatalf("unexpected prompt: %q", gotRequest.Messages[0].Content)
	}
}

func TestSummarizeEmptyResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewChatGPTClient(config.ChatGPTConfig{
		Endpoint: server.URL,
		Model:    "gpt-4.1",
		APIKey:   "test-key",
	})

	if _, err := client.Summarize(context.Background(), "prompt"); !errors.Is(err, ports.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestSummarizeServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client := NewChatGPTClient(config.ChatGPTConfig{
		Endpoint: server.URL,
		Model:    "gpt-4.1",
		APIKey:   "test-key",
	})

	_, err := client.Summarize(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestSummarizeMissingAPIKey(t *testing.T) {
	t.Parallel()

	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewChatGPTClient(config.ChatGPTConfig{
		Endpoint: server.URL,
		Model:    "gpt-4.1",
	})

	if _, err := client.Summarize(context.Background(), "prompt"); !errors.Is(err, ports.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if called {
		t.Fatal("no request may be sent without a credential")
	}
}
