// Package mirror keeps local bare mirrors in sync with their upstreams and
// runs the commit notifier after each sync.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"mirrorhooks/internal"
	"mirrorhooks/pkg/options"
	"mirrorhooks/pkg/payload"
)

// Repository is the mirror controller for one target. It is built per
// request and holds no state besides what is on disk.
type Repository struct {
	target   Target
	payload  *payload.Payload
	settings options.Settings
	matchers []options.Matcher
	executor Executor
	logger   *zap.SugaredLogger
}

type Option func(*Repository)

func WithExecutor(executor Executor) Option {
	return func(r *Repository) {
		if executor != nil {
			r.executor = executor
		}
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New builds a Repository from options resolved for target.
func New(target Target, p *payload.Payload, opts options.Options, extra ...Option) (*Repository, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("mirror %s: payload is nil", target)
	}
	settings, err := options.Decode(opts)
	if err != nil {
		return nil, fmt.Errorf("mirror %s: %w", target, err)
	}
	matchers, err := options.Matchers(settings.Targets)
	if err != nil {
		return nil, fmt.Errorf("mirror %s: %w", target, err)
	}
	r := &Repository{
		target:   target,
		payload:  p,
		settings: settings,
		matchers: matchers,
		executor: ExecExecutor{},
		logger:   internal.NewLogger("mirror"),
	}
	for _, opt := range extra {
		opt(r)
	}
	r.logger = r.logger.With("target", target.String())
	return r, nil
}

func (r *Repository) Target() Target { return r.target }
func (r *Repository) Payload() *payload.Payload { return r.payload }
func (r *Repository) Settings() options.Settings { return r.settings }
func (r *Repository) Enabled() bool { return r.settings.Enabled }
func (r *Repository) Targeted() bool { return options.Targeted(r.matchers, r.target.Name) }

// Recipients returns the notifier recipients, or ErrRecipientMissing.
func (r *Repository) Recipients() ([]string, error) {
	out := make([]string, 0, len(r.settings.To))
	for _, to := range r.settings.To {
		if to = strings.TrimSpace(to); to != "" {
			out = append(out, to)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: <%s>", ErrRecipientMissing, r.target.Name)
	}
	return out, nil
}

// MirrorPath is {mirrors_directory}/{domain}/{owner}/{name}, with a
// ".wiki" suffix on name for wiki events. It never leaves the mirrors root.
func (r *Repository) MirrorPath() (string, error) {
	root := filepath.Clean(r.settings.MirrorsDirectory)
	name := r.target.Name
	if r.payload.IsWiki() {
		name += ".wiki"
	}
	path := filepath.Join(root, r.target.Domain, r.target.Owner, name)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &ConfigError{Target: r.target, Err: fmt.Errorf("mirror path for %s escapes %s", r.target, root)}
	}
	return path, nil
}

// CloneURL picks the SSH or HTTP URL according to use_ssh.
func (r *Repository) CloneURL() (string, error) {
	var (
		url string
		ok  bool
	)
	if r.settings.UseSSH {
		url, ok = r.payload.SSHCloneURL()
	} else {
		url, ok = r.payload.HTTPCloneURL()
	}
	if !ok || url == "" {
		return "", &ConfigError{Target: r.target, Err: fmt.Errorf("clone URL is missing: <%s>", r.target)}
	}
	return url, nil
}

// Process syncs the mirror and then runs the notifier once.
func (r *Repository) Process(ctx context.Context, change Change) error {
	if _, err := r.Sync(ctx); err != nil {
		return err
	}
	return r.Notify(ctx, change)
}

// Sync clones the mirror when it is absent and fetches it otherwise,
// holding <path>.lock for the duration. A failed attempt is repeated
// up to n_retries times.
func (r *Repository) Sync(ctx context.Context) (SyncResult, error) {
	if _, err := r.Recipients(); err != nil {
		return SyncResult{}, err
	}
	path, err := r.MirrorPath()
	if err != nil {
		return SyncResult{}, err
	}
	result := SyncResult{Path: path}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return result, &ConfigError{Target: r.target, Err: fmt.Errorf("create mirror directory: %w", err)}
	}
	lock, err := AcquireLock(ctx, path+".lock", r.settings.LockTimeout)
	if err != nil {
		return result, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.logger.Warnw("release mirror lock failed", "path", lock.Path(), "error", err)
		}
	}()

	cmd := Command{
		Path:    r.settings.Git,
		Args:    []string{"--git-dir", path, "fetch", "--quiet", "--prune"},
		Timeout: r.settings.GitTimeout,
	}
	result.Operation = OperationFetch
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		url, err := r.CloneURL()
		if err != nil {
			return result, err
		}
		result.Operation = OperationClone
		cmd.Args = []string{"clone", "--quiet", "--mirror", url, path}
	}

	attempts := 1 + r.settings.NRetries
	for attempt := 1; ; attempt++ {
		result.Attempts = attempt
		output, runErr := r.executor.Run(ctx, cmd)
		if runErr == nil {
			r.logger.Debugw("mirror synced", "operation", result.Operation, "attempt", attempt)
			return result, nil
		}
		if result.Operation == OperationClone {
			_ = os.RemoveAll(path)
		}
		if attempt >= attempts || ctx.Err() != nil {
			return result, &SyncError{
				Operation:   result.Operation,
				CommandLine: cmd.String(),
				Attempts:    attempt,
				Output:      strings.TrimSpace(string(output)),
				Err:         runErr,
			}
		}
		r.logger.Warnw("mirror sync failed, retrying",
			"operation", result.Operation,
			"attempt", attempt,
			"error", runErr,
		)
	}
}

// Notify runs the notifier with the change on stdin.
func (r *Repository) Notify(ctx context.Context, change Change) error {
	path, err := r.MirrorPath()
	if err != nil {
		return err
	}
	args, err := r.NotifierArgs(path)
	if err != nil {
		return err
	}
	cmd := Command{
		Path:    r.settings.GitCommitMailer,
		Args:    args,
		Stdin:   change.String() + "\n",
		Timeout: r.settings.NotifierTimeout,
	}
	output, err := r.executor.Run(ctx, cmd)
	if err != nil {
		return &NotifierError{
			CommandLine: cmd.String(),
			Change:      change,
			Output:      strings.TrimSpace(string(output)),
			Err:         err,
		}
	}
	return nil
}

// NotifierArgs builds the notifier argv for a mirror at path.
func (r *Repository) NotifierArgs(path string) ([]string, error) {
	recipients, err := r.Recipients()
	if err != nil {
		return nil, err
	}
	args := appendOption([]string{"--repository", path}, "--max-size", r.settings.MaxDiffSize)

	if r.payload.IsFromGitLab() {
		browser := "gitlab"
		if r.payload.IsWiki() {
			browser = "gitlab-wiki"
		}
		args = appendOption(args, "--repository-browser", browser)
		projectURI, _ := r.payload.ProjectURI()
		args = appendOption(args, "--gitlab-project-uri", projectURI)
	} else {
		browser := "github"
		name := r.target.Owner + "/" + r.target.Name
		if r.payload.IsWiki() {
			browser = "github-wiki"
			name += ".wiki"
		}
		args = appendOption(args, "--repository-browser", browser)
		args = appendOption(args, "--github-user", r.target.Owner)
		args = appendOption(args, "--github-repository", r.target.Name)
		args = appendOption(args, "--name", name)
	}

	args = appendOption(args, "--from", r.settings.From)
	args = appendOption(args, "--from-domain", r.settings.FromDomain)
	args = appendOption(args, "--sender", r.settings.Sender)
	args = appendOption(args, "--sleep-per-mail", r.settings.SleepPerMail)
	if r.settings.SendPerTo {
		args = append(args, "--send-per-to")
	}
	if r.settings.AddHTML {
		args = append(args, "--add-html")
	}
	for _, errorTo := range r.settings.ErrorTo {
		args = appendOption(args, "--error-to", errorTo)
	}
	return append(args, recipients...), nil
}

func appendOption(args []string, name, value string) []string {
	if value == "" {
		return args
	}
	return append(args, name, value)
}
