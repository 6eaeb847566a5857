package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mirrorhooks/pkg/options"
	"mirrorhooks/pkg/payload"
)

const githubPushBody = `{
	"ref": "refs/heads/main",
	"before": "aaa",
	"after": "bbb",
	"repository": {
		"name": "widgets",
		"clone_url": "https://example.com/acme/widgets.git",
		"ssh_url": "git@example.com:acme/widgets.git",
		"owner": {"login": "acme"}
	}
}`

// fakeExecutor stands in for git and the notifier.
type fakeExecutor struct {
	mu        sync.Mutex
	calls     []Command
	failures  map[string]int
	delay     time.Duration
	active    int32
	maxActive int32
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{failures: map[string]int{}}
}

func commandKind(cmd Command) string {
	if len(cmd.Args) > 0 && cmd.Args[0] == "clone" {
		return "clone"
	}
	for _, arg := range cmd.Args {
		if arg == "fetch" {
			return "fetch"
		}
	}
	return "notify"
}

func (f *fakeExecutor) Run(ctx context.Context, cmd Command) ([]byte, error) {
	kind := commandKind(cmd)
	if kind != "notify" {
		current := atomic.AddInt32(&f.active, 1)
		defer atomic.AddInt32(&f.active, -1)
		for {
			peak := atomic.LoadInt32(&f.maxActive)
			if current <= peak || atomic.CompareAndSwapInt32(&f.maxActive, peak, current) {
				break
			}
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	fail := f.failures[kind] > 0
	if fail {
		f.failures[kind]--
	}
	f.mu.Unlock()

	if f.delay > 0 && kind != "notify" {
		time.Sleep(f.delay)
	}
	if kind == "clone" {
		// git creates the target before it can fail part way.
		if err := os.MkdirAll(cmd.Args[len(cmd.Args)-1], 0o755); err != nil {
			return nil, err
		}
	}
	if fail {
		return []byte("fatal: unable to access remote"), errors.New("exit status 128")
	}
	return nil, nil
}

func (f *fakeExecutor) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		out = append(out, commandKind(call))
	}
	return out
}

func (f *fakeExecutor) last(kind string) (Command, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if commandKind(f.calls[i]) == kind {
			return f.calls[i], true
		}
	}
	return Command{}, false
}

func decodeBody(t *testing.T, body string) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return data
}

func newTestRepository(t *testing.T, body string, meta payload.Metadata, target Target, extra options.Options, executor Executor) *Repository {
	t.Helper()
	opts := options.Merge(options.Defaults(), options.Options{
		"to":                "ops@example.com",
		"mirrors_directory": t.TempDir(),
		"lock_timeout":      "5s",
	}, extra)
	repo, err := New(target, payload.New(decodeBody(t, body), meta), opts, WithExecutor(executor))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	return repo
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
