package ollama

import (
	"context"
	"errors"

	"github.com/viant/medvec/embeddings"
)

var errNotConfigured = errors.New("ollama: embedder not configured")

// Embedder adapts Client to embeddings.Embedder.
type Embedder struct {
	C *Client
}

// NewClient creates a client for model; an empty baseURL targets the local server.
func NewClient(model, baseURL string) *Client {
	return NewClientWithOptions(model, WithBaseURL(baseURL))
}

func (e *Embedder) Model() string {
	if e == nil || e.C == nil {
		return ""
	}
	return e.C.Model
}

func (e *Embedder) Ping(ctx context.Context) error {
	if e == nil || e.C == nil {
		return errNotConfigured
	}
	return e.C.Ping(ctx)
}

func (e *Embedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	if e == nil || e.C == nil {
		return nil, errNotConfigured
	}
	vecs, _, err := e.C.Embed(ctx, docs)
	return vecs, err
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embeddings.Single(e.EmbedDocuments(ctx, []string{text}))
}
