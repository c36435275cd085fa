package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompleteSendsBearerAndReturnsContent(t *testing.T) {
	t.Parallel()

	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"` + "```\\n1. First?\\n```" + `"}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL, APIKey: "secret", Model: "m", Temperature: 0.7})
	content, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if content != "1. First?" {
		t.Fatalf("unexpected content %q", content)
	}
	if got.Model != "m" || got.MaxTokens != 1000 || len(got.Messages) != 1 {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestCompleteErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"status", http.StatusServiceUnavailable, `down`, func(err error) bool {
			var se *StatusError
			return errors.As(err, &se) && se.StatusCode == http.StatusServiceUnavailable
		}},
		{"api error", http.StatusOK, `{"error":{"message":"quota","type":"rate_limit"}}`, func(err error) bool {
			var ae *APIError
			return errors.As(err, &ae) && ae.Message == "quota"
		}},
		{"no choices", http.StatusOK, `{"choices":[]}`, func(err error) bool { return errors.Is(err, ErrEmptyResponse) }},
		{"blank content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, func(err error) bool { return errors.Is(err, ErrEmptyResponse) }},
		{"malformed", http.StatusOK, `{"choices":"nope"}`, func(err error) bool { return errors.Is(err, ErrMalformedResponse) }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := NewClient(Config{URL: server.URL, APIKey: "k"})
			_, err := client.Complete(context.Background(), nil)
			if err == nil || !tc.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCompleteWithoutKey(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{})
	if client.Configured() {
		t.Fatalf("expected unconfigured client")
	}
	if _, err := client.Complete(context.Background(), nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
