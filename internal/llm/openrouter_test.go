package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Lllllllleong/resumeflow/internal/retry"
)

func TestOpenRouterGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"name\":\"x\"}"}}]}`))
	}))
	defer srv.Close()

	m, err := NewOpenRouterModel(srv.URL, "key", "test-model", 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenRouterModel: %v", err)
	}
	out, err := m.Generate(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `{"name":"x"}` {
		t.Errorf("out = %q", out)
	}
	if got.Model != "test-model" || len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "user" {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestOpenRouterStatusErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	m, err := NewOpenRouterModel(srv.URL, "key", "", 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenRouterModel: %v", err)
	}
	_, err = m.Generate(context.Background(), "system", "user")
	var statusErr *retry.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want StatusError 429", err)
	}
	if !retry.IsRetryable(err) {
		t.Errorf("429 should be retryable")
	}
}

func TestOpenRouterRequiresKey(t *testing.T) {
	if _, err := NewOpenRouterModel("", "", "", time.Second); err == nil {
		t.Fatal("expected error without API key")
	}
}
