package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.uber.org/zap"

	"mirrorhooks/internal"
	"mirrorhooks/pkg/mirror"
	"mirrorhooks/pkg/storage"
	"mirrorhooks/pkg/storage/mirrors"
	"mirrorhooks/pkg/worker"
)

func loadConfig() (internal.Config, error) {
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := internal.SetupLogging(cfg.Log); err != nil {
		return cfg, fmt.Errorf("setup logging: %w", err)
	}
	return cfg, nil
}

// openStore returns nil when no storage driver is configured.
func openStore(cfg internal.StorageConfig) (storage.MirrorStore, error) {
	if strings.TrimSpace(cfg.Driver) == "" {
		return nil, nil
	}
	store, err := mirrors.Open(mirrors.Config{
		Driver:      cfg.Driver,
		DSN:         cfg.DSN,
		Table:       cfg.Table,
		AutoMigrate: cfg.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}

// newRunner resolves job options from this process's mirror tree, never
// from the message.
func newRunner(tree map[string]interface{}, store storage.MirrorStore) *mirror.Runner {
	opts := []mirror.RunnerOption{mirror.WithRunnerLogger(internal.NewLogger("runner"))}
	if store != nil {
		opts = append(opts, mirror.WithStore(store))
	}
	return mirror.NewRunner(tree, opts...)
}

func jobHandler(runner *mirror.Runner) worker.Handler {
	return worker.MiddlewareFromWatermill(middleware.Recoverer)(worker.RunnerHandler(runner))
}

func queueDrivers(cfg internal.QueueConfig) []string {
	drivers := append([]string(nil), cfg.Drivers...)
	if cfg.Driver != "" {
		drivers = append(drivers, cfg.Driver)
	}
	out := make([]string, 0, len(drivers))
	for _, driver := range drivers {
		out = append(out, strings.ToLower(strings.TrimSpace(driver)))
	}
	return out
}

func hasDriver(cfg internal.QueueConfig, name string) bool {
	for _, driver := range queueDrivers(cfg) {
		if driver == name {
			return true
		}
	}
	return false
}

func hasWatermillConsumer(cfg internal.QueueConfig) bool {
	for _, driver := range queueDrivers(cfg) {
		switch driver {
		case "gochannel", "amqp", "nats", "kafka", "sql":
			return true
		}
	}
	return false
}

// consumers runs every configured job consumer until ctx is done.
type consumers struct {
	wg   sync.WaitGroup
	errs chan error
	stop []func(context.Context) error
}

func startConsumers(ctx context.Context, cfg internal.QueueConfig, shared message.Subscriber, handler worker.Handler, logger *zap.SugaredLogger) (*consumers, error) {
	c := &consumers{errs: make(chan error, 2)}

	if hasWatermillConsumer(cfg) {
		w, err := worker.NewFromConfig(cfg, shared,
			worker.WithTopics(cfg.Topic),
			worker.WithConcurrency(cfg.Worker.Concurrency),
			worker.WithLogger(internal.NewLogger("worker")),
			worker.WithListener(worker.LoggingListener(logger)),
		)
		if err != nil {
			return nil, fmt.Errorf("build worker: %w", err)
		}
		w.HandleTopic(cfg.Topic, handler)
		c.stop = append(c.stop, func(context.Context) error { return w.Close() })
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := w.Run(ctx); err != nil {
				c.errs <- fmt.Errorf("worker: %w", err)
			}
		}()
	}

	if hasDriver(cfg, "riverqueue") {
		pool, err := internal.NewRiverPool(ctx, cfg.RiverQueue)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("river pool: %w", err), c.Stop(ctx))
		}
		client, err := worker.NewRiverClient(pool, cfg.RiverQueue, worker.NewRiverWorker(handler, internal.NewLogger("river-worker")))
		if err != nil {
			pool.Close()
			return nil, errors.Join(fmt.Errorf("river client: %w", err), c.Stop(ctx))
		}
		if err := client.Start(ctx); err != nil {
			pool.Close()
			return nil, errors.Join(fmt.Errorf("river start: %w", err), c.Stop(ctx))
		}
		c.stop = append(c.stop, func(stopCtx context.Context) error {
			defer pool.Close()
			return client.Stop(stopCtx)
		})
		logger.Infow("river consumer started", "queue", cfg.RiverQueue.Queue, "max_workers", cfg.RiverQueue.MaxWorkers)
	}

	if len(c.stop) == 0 {
		return nil, errors.New("no consumable queue driver configured")
	}
	return c, nil
}

// Errors reports consumers that stopped on their own.
func (c *consumers) Errors() <-chan error { return c.errs }

func (c *consumers) Stop(ctx context.Context) error {
	var err error
	for i := len(c.stop) - 1; i >= 0; i-- {
		err = errors.Join(err, c.stop[i](ctx))
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}
	return err
}
