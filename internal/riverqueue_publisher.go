package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// RiverJobKind is the river job kind carrying a mirror sync.
const RiverJobKind = "mirrorhooks.sync"

// RiverJobArgs is the river job payload. Payload holds the encoded job as
// published to every other driver.
type RiverJobArgs struct {
	Provider  string          `json:"provider"`
	Event     string          `json:"event"`
	RequestID string          `json:"request_id,omitempty"`
	Topic     string          `json:"topic,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

func (RiverJobArgs) Kind() string { return RiverJobKind }

// riverQueuePublisher inserts jobs through an insert-only river client.
type riverQueuePublisher struct {
	pool   *pgxpool.Pool
	client *river.Client[pgx.Tx]
	cfg    RiverQueueConfig
}

// NewRiverPool opens the pgx pool used by both sides of the river driver.
func NewRiverPool(ctx context.Context, cfg RiverQueueConfig) (*pgxpool.Pool, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("riverqueue dsn is required")
	}
	return pgxpool.New(ctx, cfg.DSN)
}

// RiverLogger is the slog logger handed to river clients.
func RiverLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(riverLogWriter{logger: NewLogger("river")}, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func newRiverQueuePublisher(cfg RiverQueueConfig) (*riverQueuePublisher, error) {
	pool, err := NewRiverPool(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Logger: RiverLogger(),
	})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &riverQueuePublisher{pool: pool, client: client, cfg: cfg}, nil
}

// Publish inserts a job. Retries are left to river's max_attempts.
func (p *riverQueuePublisher) Publish(ctx context.Context, topic string, event Event) error {
	args := RiverJobArgs{
		Provider:  event.Provider,
		Event:     event.Name,
		RequestID: event.RequestID,
		Topic:     topic,
		Payload:   json.RawMessage(event.Payload),
	}
	_, err := p.client.Insert(ctx, args, &river.InsertOpts{
		Queue:       p.cfg.Queue,
		MaxAttempts: p.cfg.MaxAttempts,
		Priority:    p.cfg.Priority,
		Tags:        p.cfg.Tags,
	})
	return err
}

func (p *riverQueuePublisher) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *riverQueuePublisher) PublishForDrivers(ctx context.Context, topic string, event Event, drivers []string) error {
	return p.Publish(ctx, topic, event)
}

type riverLogWriter struct {
	logger interface{ Info(args ...interface{}) }
}

func (w riverLogWriter) Write(p []byte) (int, error) {
	w.logger.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
