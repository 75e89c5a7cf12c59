package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newModelsServer(t *testing.T, known ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/models/")
		for _, k := range known {
			if k == id {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{
					"id":       id,
					"object":   "model",
					"created":  0,
					"owned_by": "test",
				})
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"model not found"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPreflightKnownModels(t *testing.T) {
	t.Parallel()

	srv := newModelsServer(t, "openai/gpt-4o-mini", "anthropic/claude-haiku")
	client := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})

	if err := Preflight(context.Background(), client, []string{"openai/gpt-4o-mini", "anthropic/claude-haiku"}); err != nil {
		t.Fatalf("Preflight() error = %v", err)
	}
}

func TestPreflightReportsUnknownModel(t *testing.T) {
	t.Parallel()

	srv := newModelsServer(t, "openai/gpt-4o-mini")
	client := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})

	err := Preflight(context.Background(), client, []string{"openai/gpt-4o-mini", "typo/model"})
	if err == nil || !strings.Contains(err.Error(), "typo/model") {
		t.Fatalf("Preflight() error = %v, want one naming typo/model", err)
	}
}

func TestNewClientWithoutKey(t *testing.T) {
	t.Parallel()

	if c := NewClient(Config{BaseURL: "https://openrouter.ai/api/v1"}); c != nil {
		t.Fatalf("NewClient() without key = %v, want nil", c)
	}
	if err := Preflight(context.Background(), nil, []string{"x"}); err == nil {
		t.Fatalf("Preflight(nil) error = nil")
	}
}
