package history

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	qstashx "github.com/tanpawarit/assistant-orchestrator/pkg/qstash"
)

type capturedPublish struct {
	path    string
	headers http.Header
	body    []byte
}

type fakeQStash struct {
	mu       sync.Mutex
	requests []capturedPublish
	status   int
}

func (f *fakeQStash) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, capturedPublish{path: r.URL.Path, headers: r.Header.Clone(), body: body})
	status := f.status
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
		return
	}
	_, _ = w.Write([]byte(`{"messageId":"msg_123"}`))
}

func (f *fakeQStash) sent() []capturedPublish {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

func newPublisher(t *testing.T, fake *fakeQStash) *QStashPublisher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	client, err := qstashx.NewClient(qstashx.Config{URL: srv.URL, Token: "qstash-token"})
	if err != nil {
		t.Fatalf("qstash.NewClient() error = %v", err)
	}
	pub, err := NewQStashPublisher(client, "https://example.com/hooks/turns")
	if err != nil {
		t.Fatalf("NewQStashPublisher() error = %v", err)
	}
	return pub
}

func TestQStashPublisherSendsTurn(t *testing.T) {
	t.Parallel()

	fake := &fakeQStash{}
	pub := newPublisher(t, fake)

	turn := contractx.Turn{
		ID:    "turn-1",
		Query: "What's the weather in Warsaw?",
		Reply: "Sunny, 18 degrees.",
		Tools: []string{"weather"},
		At:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := pub.OnTurnComplete(context.Background(), "session-1", turn); err != nil {
		t.Fatalf("OnTurnComplete() error = %v", err)
	}

	sent := fake.sent()
	if len(sent) != 1 {
		t.Fatalf("requests = %d, want 1", len(sent))
	}
	got := sent[0]
	if got.path != "/v2/publish/https://example.com/hooks/turns" {
		t.Fatalf("path = %q", got.path)
	}
	if got.headers.Get("Authorization") != "Bearer qstash-token" {
		t.Fatalf("Authorization = %q", got.headers.Get("Authorization"))
	}
	if got.headers.Get("Upstash-Deduplication-Id") != "turn-1" {
		t.Fatalf("dedup id = %q", got.headers.Get("Upstash-Deduplication-Id"))
	}
	if got.headers.Get("Upstash-Forward-X-Session-Id") != "session-1" {
		t.Fatalf("forwarded session header = %q", got.headers.Get("Upstash-Forward-X-Session-Id"))
	}

	var ev TurnEvent
	if err := json.Unmarshal(got.body, &ev); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if ev.SessionID != "session-1" || ev.Turn.ID != "turn-1" || ev.Turn.Reply != turn.Reply {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestQStashPublisherSurfacesErrors(t *testing.T) {
	t.Parallel()

	fake := &fakeQStash{status: http.StatusUnauthorized}
	pub := newPublisher(t, fake)

	err := pub.OnTurnComplete(context.Background(), "session-1", contractx.Turn{ID: "turn-2"})
	if err == nil || !strings.Contains(err.Error(), "invalid token") {
		t.Fatalf("OnTurnComplete() error = %v, want upstream message", err)
	}
}

func TestNewQStashPublisherRequiresDestination(t *testing.T) {
	t.Parallel()

	client, err := qstashx.NewClient(qstashx.Config{URL: "https://qstash.upstash.io", Token: "t"})
	if err != nil {
		t.Fatalf("qstash.NewClient() error = %v", err)
	}
	if _, err := NewQStashPublisher(client, " "); err == nil {
		t.Fatalf("NewQStashPublisher() accepted an empty destination")
	}
}
