package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceUnavailable indicates the source reader failed; the index is untouched.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrProvider indicates the embedding provider failed.
	ErrProvider = errors.New("embedding provider failure")
	// ErrIndexUnavailable indicates a vector index read or write failed.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrSyncInProgress is returned under the reject policy while another cycle runs.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrInvalidRequest indicates a malformed query.
	ErrInvalidRequest = errors.New("invalid request")

	errSourceNotConfigured = errors.New("source reader is not configured")
)

// OpError describes a failed operation step.
type OpError struct {
	Op       string
	Kind     error
	Position int
	ID       string
	Err      error
}

func (e *OpError) Error() string {
	sb := strings.Builder{}
	sb.WriteString(e.Op)
	if e.ID != "" {
		sb.WriteString(" ")
		sb.WriteString(e.ID)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Kind.Error())
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the failure kind and the cause to errors.Is / errors.As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func opError(op string, kind error, position int, id string, err error) *OpError {
	return &OpError{Op: op, Kind: kind, Position: position, ID: id, Err: err}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidRequest}, args...)...)
}
