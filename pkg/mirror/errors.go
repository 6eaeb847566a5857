package mirror

import (
	"errors"
	"fmt"
)

// ErrRecipientMissing is returned for an enabled repository without "to".
var ErrRecipientMissing = errors.New("mail receive address is missing")

// ConfigError is a repository that cannot be mirrored as configured, such
// as one without a usable clone URL. Running it again gives the same result.
type ConfigError struct {
	Target Target
	Err    error
}

func (e *ConfigError) Error() string { return e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

// SyncError is a clone or fetch that failed on every attempt.
type SyncError struct {
	Operation   Operation
	CommandLine string
	Attempts    int
	Output      string
	Err         error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("failed to run command: <%s> (%s, %d attempts): %v", e.CommandLine, e.Operation, e.Attempts, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// NotifierError is a failed notifier run. It is never retried.
type NotifierError struct {
	CommandLine string
	Change      Change
	Output      string
	Err         error
}

func (e *NotifierError) Error() string {
	return fmt.Sprintf("failed to run notifier: <%s>:<%s>: %v", e.CommandLine, e.Change, e.Err)
}

func (e *NotifierError) Unwrap() error { return e.Err }
