package vectordb

import (
	"context"
	"errors"

	"github.com/viant/medvec/record"
	"github.com/viant/sqlite-vec/vector"
)

// ErrClosed is returned by index operations after Close.
var ErrClosed = errors.New("vectordb: index closed")

// Index stores patient entries and answers nearest neighbour queries.
type Index interface {
	// GetAll returns every stored entry in position order.
	GetAll(ctx context.Context) ([]record.Entry, error)
	// Add upserts entries by identifier.
	Add(ctx context.Context, entries ...record.Entry) error
	// Delete removes entries by identifier; unknown identifiers are ignored.
	Delete(ctx context.Context, ids ...string) error
	// QueryNearest returns up to k entries closest to vec by cosine distance.
	QueryNearest(ctx context.Context, vec []float32, k int) ([]Neighbor, error)
	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Neighbor is a QueryNearest result; Distance is cosine distance in [0,2].
type Neighbor struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float64
}

// CosineDistance returns 1 - cosine similarity; degenerate vectors are at distance 1.
func CosineDistance(a, b []float32) float64 {
	sim, err := vector.CosineSimilarity(a, b)
	if err != nil {
		return 1
	}
	return 1 - sim
}
