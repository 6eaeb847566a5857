package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mirrorhooks/internal"
	"mirrorhooks/pkg/gateway"
	"mirrorhooks/pkg/mirror"
	"mirrorhooks/pkg/payload"
)

var (
	replayGitHubEvent string
	replayGitLabEvent string
	replayEnqueue     bool
)

// ReplayCmd runs a saved webhook body through the gateway.
var ReplayCmd = &cobra.Command{
	Use:   "replay <payload.json|->",
	Short: "Process a saved webhook payload",
	Long: `Run a saved webhook body through validation, repository resolution and
change extraction. By default the job is executed immediately in this
process; with --enqueue it is published to the configured queue.

Examples:
  mirrorhooks replay --github-event push push.json
  mirrorhooks replay --gitlab-event "Wiki Page Hook" wiki.json
  cat push.json | mirrorhooks replay --github-event push --enqueue -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := readPayload(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		result, err := replay(cmd.Context(), cfg, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", result.Status, result.Message)
		return nil
	},
}

func init() {
	ReplayCmd.Flags().StringVar(&replayGitHubEvent, "github-event", "push", "X-GitHub-Event value for the payload")
	ReplayCmd.Flags().StringVar(&replayGitLabEvent, "gitlab-event", "", "X-Gitlab-Event value for the payload")
	ReplayCmd.Flags().BoolVar(&replayEnqueue, "enqueue", false, "Publish the job instead of running it")
}

func readPayload(path string, stdin io.Reader) (*payload.Payload, error) {
	var (
		body []byte
		err  error
	)
	if path == "-" {
		body, err = io.ReadAll(stdin)
	} else {
		body, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil || data == nil {
		return nil, errors.New("payload must be a JSON object")
	}
	metadata := payload.Metadata{GitHubEvent: replayGitHubEvent, GitLabEvent: replayGitLabEvent}
	if replayGitLabEvent != "" {
		metadata.GitHubEvent = ""
	}
	return payload.New(data, metadata), nil
}

func replay(ctx context.Context, cfg internal.Config, p *payload.Payload) (gateway.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var queue gateway.Queue
	if replayEnqueue {
		publisher, err := internal.NewPublisher(cfg.Queue)
		if err != nil {
			return gateway.Result{}, fmt.Errorf("publisher: %w", err)
		}
		defer publisher.Close()
		queue = gateway.NewPublisherQueue(publisher, cfg.Queue.Topic)
	} else {
		store, err := openStore(cfg.Storage)
		if err != nil {
			return gateway.Result{}, err
		}
		if store != nil {
			defer store.Close()
		}
		runner := newRunner(cfg.Mirror, store)
		queue = gateway.QueueFunc(func(ctx context.Context, job mirror.Job) error {
			return runner.Run(ctx, job)
		})
	}

	gw := gateway.New(gateway.NewResolver(cfg.Mirror), queue, gateway.WithLogger(internal.NewLogger("replay")))
	return gw.Handle(gateway.WithRequestID(ctx, "replay"), p)
}
