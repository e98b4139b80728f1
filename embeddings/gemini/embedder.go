// Package gemini embeds text with the Gemini embedding API.
package gemini

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/medvec/embeddings"
	"google.golang.org/genai"
)

const defaultModel = "gemini-embedding-001"

// Embedder implements embeddings.Embedder on top of a lazily created genai client.
type Embedder struct {
	apiKey   string
	model    string
	taskType genai.TaskType

	mu      sync.Mutex
	client  *genai.Client
	initErr error
}

// NewEmbedder creates an embedder; taskType follows the Gemini task names
// (SEMANTIC_SIMILARITY when empty).
func NewEmbedder(apiKey, model, taskType string) *Embedder {
	if model == "" {
		model = defaultModel
	}
	return &Embedder{apiKey: apiKey, model: model, taskType: parseTaskType(taskType)}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// EmbedDocuments embeds docs in a single request.
func (e *Embedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no input texts provided")
	}
	client, err := e.getClient(ctx)
	if err != nil {
		return nil, err
	}
	contents := make([]*genai.Content, len(docs))
	for i, text := range docs {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	result, err := client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentRequest{TaskType: e.taskType})
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	if err := embeddings.CheckCount(out, len(docs)); err != nil {
		return nil, err
	}
	return out, nil
}

// EmbedQuery embeds a single query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embeddings.Single(e.EmbedDocuments(ctx, []string{text}))
}

// Ping verifies the client can be created.
func (e *Embedder) Ping(ctx context.Context) error {
	_, err := e.getClient(ctx)
	return err
}

func (e *Embedder) getClient(ctx context.Context) (*genai.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil || e.initErr != nil {
		return e.client, e.initErr
	}
	if e.apiKey == "" {
		e.initErr = fmt.Errorf("genai api key is required")
		return nil, e.initErr
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: e.apiKey})
	if err != nil {
		e.initErr = fmt.Errorf("genai client: %w", err)
		return nil, e.initErr
	}
	e.client = client
	return client, nil
}

func parseTaskType(taskType string) genai.TaskType {
	switch taskType {
	case "RETRIEVAL_DOCUMENT":
		return genai.TaskTypeRetrievalDocument
	case "RETRIEVAL_QUERY":
		return genai.TaskTypeRetrievalQuery
	case "CLASSIFICATION":
		return genai.TaskTypeClassification
	case "CLUSTERING":
		return genai.TaskTypeClustering
	default:
		return genai.TaskTypeSemanticSimilarity
	}
}
