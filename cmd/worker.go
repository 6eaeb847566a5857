package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mirrorhooks/internal"
)

// WorkerCmd consumes queued jobs without serving HTTP.
var WorkerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued mirror jobs",
	Long: `Consume mirror jobs from the configured queue drivers (amqp, kafka,
nats, sql, riverqueue) and run clone/fetch plus the notifier for each.

The gochannel driver is process-local; use serve with the embedded
worker for it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runWorker(ctx, cfg)
	},
}

func runWorker(ctx context.Context, cfg internal.Config) error {
	logger := internal.NewLogger("worker")

	drivers := queueDrivers(cfg.Queue)
	if len(drivers) == 1 && drivers[0] == "gochannel" {
		return errors.New("the gochannel driver cannot be consumed by a separate worker process")
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	queue := cfg.Queue
	queue.Drivers = nil
	queue.Driver = ""
	for _, driver := range drivers {
		if driver != "gochannel" {
			queue.Drivers = append(queue.Drivers, driver)
		}
	}

	workerCtx, stop := context.WithCancel(ctx)
	defer stop()
	workers, err := startConsumers(workerCtx, queue, nil, jobHandler(newRunner(cfg.Mirror, store)), logger)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case err := <-workers.Errors():
		logger.Errorw("worker stopped", "error", err)
	}
	stop()
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return workers.Stop(stopCtx)
}
