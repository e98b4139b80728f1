package vertexai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/viant/medvec/embeddings"
)

var errNoProject = errors.New("vertexai: project id is required")

// Embedder creates its Client on first use so a missing credential surfaces
// from Ping or the first embedding call instead of at wiring time.
type Embedder struct {
	projectID string
	model     string
	location  string
	scopes    []string

	mu      sync.Mutex
	client  *Client
	initErr error
}

func NewEmbedder(projectID, model, location string, scopes []string) *Embedder {
	return &Embedder{
		projectID: projectID,
		model:     model,
		location:  location,
		scopes:    scopes,
	}
}

// Model returns the configured model, or the default when unset.
func (e *Embedder) Model() string {
	if e.model == "" {
		return defaultModel
	}
	return e.model
}

// Ping verifies application default credentials can mint a token.
func (e *Embedder) Ping(ctx context.Context) error {
	client, err := e.getClient(ctx)
	if err != nil {
		return err
	}
	if _, err := client.tokenSource.Token(); err != nil {
		return fmt.Errorf("vertexai: token: %w", err)
	}
	return nil
}

func (e *Embedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	client, err := e.getClient(ctx)
	if err != nil {
		return nil, err
	}
	vecs, _, err := client.Embed(ctx, docs)
	return vecs, err
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embeddings.Single(e.EmbedDocuments(ctx, []string{text}))
}

func (e *Embedder) getClient(ctx context.Context) (*Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil || e.initErr != nil {
		return e.client, e.initErr
	}
	client, err := NewClient(ctx, e.projectID, e.model, WithLocation(e.location), WithScopes(e.scopes...))
	if err != nil {
		e.initErr = err
		return nil, err
	}
	e.client = client
	return client, nil
}
