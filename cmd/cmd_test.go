package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mirrorhooks/internal"
	"mirrorhooks/pkg/gateway"
)

const pushPayload = `{
	"ref": "refs/heads/main",
	"before": "aaa",
	"after": "bbb",
	"repository": {
		"name": "widgets",
		"clone_url": "https://example.com/acme/widgets.git",
		"owner": {"login": "acme"}
	}
}`

func testConfig(t *testing.T, yaml string) internal.Config {
	t.Helper()
	cfg, err := internal.ParseConfig([]byte(yaml))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestNewMuxRoutes(t *testing.T) {
	cfg := testConfig(t, `
server:
  metrics_enabled: true
providers:
  github:
    enabled: true
    path: /hooks
  gitlab:
    enabled: true
    path: /hooks
`)
	var hits int
	hooks := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	})
	mux := newMux(cfg, hooks, nil, internal.NewLogger("test"))

	cases := map[string]int{
		"/hooks":       http.StatusOK,
		"/healthz":     http.StatusOK,
		"/metrics":     http.StatusOK,
		"/api/mirrors": http.StatusServiceUnavailable,
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		method := http.MethodGet
		if path == "/hooks" {
			method = http.MethodPost
		}
		mux.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		if rec.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, rec.Code)
		}
	}
	if hits != 1 {
		t.Fatalf("expected shared path to reach the webhook handler once, got %d", hits)
	}
}

func TestQueueDrivers(t *testing.T) {
	cfg := internal.QueueConfig{Driver: "GoChannel", Drivers: []string{" riverqueue ", "http"}}
	if !hasDriver(cfg, "gochannel") || !hasDriver(cfg, "riverqueue") {
		t.Fatalf("expected normalized drivers, got %v", queueDrivers(cfg))
	}
	if !hasWatermillConsumer(cfg) {
		t.Fatalf("expected gochannel to count as a watermill consumer")
	}
	if hasWatermillConsumer(internal.QueueConfig{Drivers: []string{"http", "riverqueue"}}) {
		t.Fatalf("publish-only drivers must not start a watermill consumer")
	}
}

func TestReadPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "push.json")
	if err := os.WriteFile(path, []byte(pushPayload), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	replayGitHubEvent, replayGitLabEvent = "push", ""
	p, err := readPayload(path, nil)
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if p.EventName() != "push" {
		t.Fatalf("unexpected event %q", p.EventName())
	}

	p, err = readPayload("-", strings.NewReader(`{"object_kind":"wiki_page"}`))
	if err != nil {
		t.Fatalf("read stdin payload: %v", err)
	}
	if !p.IsFromGitLab() {
		t.Fatalf("expected GitLab payload from stdin")
	}

	if _, err := readPayload("-", strings.NewReader(`[]`)); err == nil {
		t.Fatalf("expected non-object payload to be rejected")
	}
}

func TestReplayEnqueue(t *testing.T) {
	cfg := testConfig(t, `
mirror:
  to: ops@example.com
`)
	replayGitHubEvent, replayGitLabEvent, replayEnqueue = "push", "", true
	defer func() { replayEnqueue = false }()

	p, err := readPayload("-", strings.NewReader(pushPayload))
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	result, err := replay(context.Background(), cfg, p)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.Status != gateway.StatusEnqueued || result.Job == nil {
		t.Fatalf("expected enqueued job, got %+v", result)
	}
}

func TestReplayIgnoresDisabled(t *testing.T) {
	cfg := testConfig(t, `
mirror:
  enabled: false
`)
	replayGitHubEvent, replayGitLabEvent, replayEnqueue = "push", "", false
	p, err := readPayload("-", strings.NewReader(pushPayload))
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	result, err := replay(context.Background(), cfg, p)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.Status != gateway.StatusIgnored {
		t.Fatalf("expected ignored, got %+v", result)
	}
}
