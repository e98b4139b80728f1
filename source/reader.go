// Package source defines where patient descriptions come from.
package source

import "context"

// Reader returns every patient description in a deterministic order.
// Positions are indexes into the returned slice.
type Reader interface {
	ReadAll(ctx context.Context) ([]string, error)
}

// Counter is implemented by readers that can count source records cheaply.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Pinger is implemented by readers that can probe their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Static serves a fixed description list.
type Static []string

// ReadAll returns a copy of the descriptions.
func (s Static) ReadAll(ctx context.Context) ([]string, error) {
	out := make([]string, len(s))
	copy(out, s)
	return out, nil
}

// Count returns the number of descriptions.
func (s Static) Count(ctx context.Context) (int, error) { return len(s), nil }

// Func adapts a function to Reader.
type Func func(ctx context.Context) ([]string, error)

// ReadAll calls f.
func (f Func) ReadAll(ctx context.Context) ([]string, error) { return f(ctx) }
