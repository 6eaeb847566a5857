package storage

import (
	"context"
	"time"
)

// Sync outcomes recorded for a mirror.
const (
	StatusNotified     = "notified"
	StatusSyncFailed   = "sync_failed"
	StatusNotifyFailed = "notify_failed"
)

// MirrorRecord is the last known state of one local mirror.
type MirrorRecord struct {
	Domain    string    `json:"domain"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	Wiki      bool      `json:"wiki"`
	Path      string    `json:"path"`
	CloneURL  string    `json:"clone_url,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Before    string    `json:"before"`
	After     string    `json:"after"`
	Ref       string    `json:"ref"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Head      string    `json:"head,omitempty"`
	RefCount  int       `json:"ref_count"`
	Attempts  int       `json:"attempts"`
	JobID     string    `json:"job_id,omitempty"`
	SyncedAt  time.Time `json:"synced_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MirrorFilter selects mirror rows. Empty fields match everything.
type MirrorFilter struct {
	Domain string
	Owner  string
	Name   string
	Status string
}

// MirrorStore persists mirror sync outcomes.
type MirrorStore interface {
	UpsertMirror(ctx context.Context, record MirrorRecord) error
	GetMirror(ctx context.Context, domain, owner, name string, wiki bool) (*MirrorRecord, error)
	ListMirrors(ctx context.Context, filter MirrorFilter) ([]MirrorRecord, error)
	Close() error
}
