package gateway

import "fmt"

// ValidationError is a malformed or incomplete webhook. The reason is
// returned to the sender verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
