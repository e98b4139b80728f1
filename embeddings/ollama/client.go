// Package ollama embeds texts through a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/viant/medvec/embeddings"
)

const (
	provider       = "ollama"
	defaultBaseURL = "http://localhost:11434"
	defaultTimeout = 30 * time.Second
)

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.BaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// Client calls the /api/embed endpoint.
type Client struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings      [][]float32 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	Error           string      `json:"error"`
}

func NewClientWithOptions(model string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    defaultBaseURL,
		Model:      model,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, int, error) {
	switch {
	case c == nil:
		return nil, 0, fmt.Errorf("ollama: client is nil")
	case c.Model == "":
		return nil, 0, fmt.Errorf("ollama: model is required")
	case len(texts) == 0:
		return nil, 0, fmt.Errorf("ollama: no input texts")
	}
	var out embedResponse
	call := embeddings.Call{Provider: provider, URL: c.BaseURL + "/api/embed", In: embedRequest{Model: c.Model, Input: texts}, Out: &out}
	if err := call.Do(ctx, c.HTTPClient); err != nil {
		return nil, 0, err
	}
	if out.Error != "" {
		return nil, 0, fmt.Errorf("ollama: %s", out.Error)
	}
	if err := embeddings.CheckCount(out.Embeddings, len(texts)); err != nil {
		return nil, 0, err
	}
	return out.Embeddings, out.PromptEvalCount, nil
}

// Ping lists local models, verifying the server is up.
func (c *Client) Ping(ctx context.Context) error {
	return embeddings.Call{Provider: provider, Method: http.MethodGet, URL: c.BaseURL + "/api/tags"}.Do(ctx, c.HTTPClient)
}
