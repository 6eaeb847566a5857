package mirrors

import (
	"context"
	"path/filepath"
	"testing"

	"mirrorhooks/pkg/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{
		Driver:      "sqlite",
		DSN:         filepath.Join(t.TempDir(), "mirrors.db"),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUpsertAndGetMirror(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	record := storage.MirrorRecord{
		Domain:    "example.com",
		Owner:     "acme",
		Name:      "widgets",
		Path:      "/srv/mirrors/example.com/acme/widgets",
		Operation: "clone",
		Before:    "aaa",
		After:     "bbb",
		Ref:       "refs/heads/main",
		Status:    storage.StatusNotified,
		Attempts:  1,
	}
	if err := store.UpsertMirror(ctx, record); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	record.Operation = "fetch"
	record.After = "ccc"
	record.Attempts = 2
	if err := store.UpsertMirror(ctx, record); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := store.GetMirror(ctx, "example.com", "acme", "widgets", false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected record")
	}
	if got.Operation != "fetch" || got.After != "ccc" || got.Attempts != 2 {
		t.Fatalf("expected updated record, got %+v", got)
	}
	if got.SyncedAt.IsZero() {
		t.Fatalf("expected synced_at to be set")
	}

	missing, err := store.GetMirror(ctx, "example.com", "acme", "widgets", true)
	if err != nil {
		t.Fatalf("get wiki: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected no wiki record, got %+v", missing)
	}
}

func TestListMirrorsFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, record := range []storage.MirrorRecord{
		{Domain: "example.com", Owner: "acme", Name: "widgets", Status: storage.StatusNotified},
		{Domain: "example.com", Owner: "acme", Name: "widgets", Wiki: true, Status: storage.StatusSyncFailed},
		{Domain: "gitlab.example.com", Owner: "group/sub", Name: "tools", Status: storage.StatusNotified},
	} {
		if err := store.UpsertMirror(ctx, record); err != nil {
			t.Fatalf("upsert %s: %v", record.Name, err)
		}
	}

	all, err := store.ListMirrors(ctx, storage.MirrorFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}

	acme, err := store.ListMirrors(ctx, storage.MirrorFilter{Owner: "acme"})
	if err != nil {
		t.Fatalf("list acme: %v", err)
	}
	if len(acme) != 2 {
		t.Fatalf("expected 2 acme records, got %d", len(acme))
	}

	failed, err := store.ListMirrors(ctx, storage.MirrorFilter{Status: storage.StatusSyncFailed})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || !failed[0].Wiki {
		t.Fatalf("expected the failed wiki mirror, got %+v", failed)
	}
}

func TestUpsertRequiresIdentity(t *testing.T) {
	store := openTestStore(t)
	if err := store.UpsertMirror(context.Background(), storage.MirrorRecord{Domain: "example.com"}); err == nil {
		t.Fatalf("expected error for missing owner and name")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
