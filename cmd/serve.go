package cmd

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mirrorhooks/internal"
	"mirrorhooks/pkg/api"
	"mirrorhooks/pkg/gateway"
	"mirrorhooks/pkg/storage"
	"mirrorhooks/pkg/webhook"
)

const (
	shutdownTimeout = 10 * time.Second
	rateLimitTTL    = 10 * time.Minute
)

// ServeCmd runs the webhook gateway.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook gateway",
	Long: `Run the HTTP gateway for GitHub and GitLab webhooks.

Accepted changes are queued on the configured drivers. With
queue.worker.embedded (the default) jobs are also consumed in-process.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg internal.Config) error {
	logger := internal.NewLogger("server")

	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	embedded := cfg.Queue.EmbeddedWorker()
	if embedded && !hasWatermillConsumer(cfg.Queue) && !hasDriver(cfg.Queue, "riverqueue") {
		logger.Infow("no consumable queue driver, embedded worker disabled", "drivers", queueDrivers(cfg.Queue))
		embedded = false
	}
	var shared message.Subscriber
	if embedded && hasDriver(cfg.Queue, "gochannel") {
		goChannel := internal.NewGoChannel(cfg.Queue.GoChannel, internal.NewWatermillLogger(internal.NewLogger("gochannel")))
		shared = goChannel
		internal.RegisterPublisherDriver("gochannel", func(internal.QueueConfig, watermill.LoggerAdapter) (message.Publisher, func() error, error) {
			return goChannel, nil, nil
		})
	}

	publisher, err := internal.NewPublisher(cfg.Queue)
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	defer publisher.Close()

	gw := gateway.New(
		gateway.NewResolver(cfg.Mirror),
		gateway.NewPublisherQueue(publisher, cfg.Queue.Topic),
		gateway.WithLogger(internal.NewLogger("gateway")),
	)
	hooks, err := webhook.NewHandler(webhook.Config{
		GitHub:  cfg.Providers.GitHub,
		GitLab:  cfg.Providers.GitLab,
		MaxBody: cfg.Server.MaxBodyBytes,
	}, gw, internal.NewLogger("webhook"))
	if err != nil {
		return fmt.Errorf("webhook handler: %w", err)
	}

	if !embedded && hasDriver(cfg.Queue, "gochannel") {
		logger.Warnw("gochannel jobs are process-local and the embedded worker is disabled; they will not be consumed")
	}

	var workers *consumers
	if embedded {
		workerCtx, stopWorkers := context.WithCancel(ctx)
		defer stopWorkers()
		workers, err = startConsumers(workerCtx, cfg.Queue, shared, jobHandler(newRunner(cfg.Mirror, store)), internal.NewLogger("worker"))
		if err != nil {
			return err
		}
		defer func() {
			stopWorkers()
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := workers.Stop(stopCtx); err != nil {
				logger.Warnw("worker shutdown", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           newMux(cfg, hooks, store, logger),
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderMS) * time.Millisecond,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("listening", "addr", server.Addr, "embedded_worker", embedded)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var workerErrs <-chan error
	if workers != nil {
		workerErrs = workers.Errors()
	}
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case err := <-workerErrs:
		logger.Errorw("worker stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("shutdown", "error", err)
	}
	return nil
}

func newMux(cfg internal.Config, hooks http.Handler, store storage.MirrorStore, logger *zap.SugaredLogger) *http.ServeMux {
	mux := http.NewServeMux()
	limited := internal.NewRateLimitHandler(hooks, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, rateLimitTTL)

	mounted := make(map[string]struct{}, 2)
	for _, path := range []string{cfg.Providers.GitHub.Path, cfg.Providers.GitLab.Path} {
		if _, ok := mounted[path]; ok || path == "" {
			continue
		}
		mounted[path] = struct{}{}
		mux.Handle(path, limited)
		logger.Infow("webhook endpoint", "path", path)
	}

	mux.HandleFunc("/healthz", api.HealthHandler)
	if cfg.Server.MetricsEnabled {
		mux.Handle(cfg.Server.MetricsPath, expvar.Handler())
	}
	apiPath := strings.TrimRight(cfg.Server.APIPath, "/")
	mux.Handle(apiPath+"/mirrors", &api.MirrorsHandler{Store: store, Logger: internal.NewLogger("api")})
	return mux
}
