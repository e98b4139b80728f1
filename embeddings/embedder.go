package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// ErrVectorCount is returned when a provider answers with a different number of vectors than inputs.
var ErrVectorCount = errors.New("embeddings: vector count mismatch")

// Embedder is a minimal interface for computing vector embeddings
// for documents and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// HealthChecker is implemented by embedders that can probe their provider without embedding.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Modeler is implemented by embedders that expose the model they use.
type Modeler interface {
	Model() string
}

// ModelOf returns the embedder model or fallback.
func ModelOf(e Embedder, fallback string) string {
	if m, ok := e.(Modeler); ok && m.Model() != "" {
		return m.Model()
	}
	return fallback
}

// CheckCount validates the provider returned one vector per input.
func CheckCount(vectors [][]float32, inputs int) error {
	if len(vectors) != inputs {
		return fmt.Errorf("%w: got %d, expected %d", ErrVectorCount, len(vectors), inputs)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty vector at %d", ErrVectorCount, i)
		}
	}
	return nil
}
