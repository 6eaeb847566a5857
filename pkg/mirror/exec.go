package mirror

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Command is one external process invocation.
type Command struct {
	Path    string
	Args    []string
	Stdin   string
	Timeout time.Duration
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, part := range append([]string{c.Path}, c.Args...) {
		if part == "" || strings.ContainsAny(part, " \t\n'\"\\$") {
			part = strconv.Quote(part)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}

// Executor runs external commands and returns their combined output.
type Executor interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecExecutor runs commands with os/exec.
type ExecExecutor struct{}

func (ExecExecutor) Run(ctx context.Context, cmd Command) ([]byte, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	return c.CombinedOutput()
}
