// Package openai embeds texts through the OpenAI embeddings API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/viant/medvec/embeddings"
)

const (
	provider       = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "text-embedding-3-small"
	defaultTimeout = 30 * time.Second
)

// Request is the embeddings API payload.
type Request struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// Response is the embeddings API answer; Data may arrive out of input order.
type Response struct {
	Data  []EmbeddingData `json:"data"`
	Model string          `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// EmbeddingData is one vector with the index of its input.
type EmbeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL, e.g. for a proxy or Azure-compatible gateway.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.BaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPTimeout overrides the HTTP client timeout.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.HTTPClient.Timeout = d
		}
	}
}

// Client calls the embeddings endpoint. An empty key falls back to OPENAI_API_KEY.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

func NewClient(apiKey, model string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    defaultBaseURL,
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	return c
}

// Embed returns one vector per text in input order plus the billed token count.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, int, error) {
	if c.APIKey == "" {
		return nil, 0, fmt.Errorf("openai: api key is required")
	}
	if len(texts) == 0 {
		return nil, 0, fmt.Errorf("openai: no input texts")
	}
	var resp Response
	call := c.call(http.MethodPost, "/embeddings")
	call.In, call.Out = Request{Model: c.Model, Input: texts}, &resp
	if err := call.Do(ctx, c.HTTPClient); err != nil {
		return nil, 0, describe(err)
	}
	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	if err := embeddings.CheckCount(out, len(texts)); err != nil {
		return nil, 0, err
	}
	return out, resp.Usage.TotalTokens, nil
}

// Ping retrieves the configured model, verifying credentials and reachability.
func (c *Client) Ping(ctx context.Context) error {
	return describe(c.call(http.MethodGet, "/models/"+c.Model).Do(ctx, c.HTTPClient))
}

func (c *Client) call(method, path string) embeddings.Call {
	return embeddings.Call{
		Provider: provider,
		Method:   method,
		URL:      c.BaseURL + path,
		Header:   map[string]string{"Authorization": "Bearer " + c.APIKey},
	}
}

// describe replaces a JSON error body with its type and message.
func describe(err error) error {
	var status *embeddings.StatusError
	if !errors.As(err, &status) {
		return err
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(status.Body), &body) != nil || body.Error.Message == "" {
		return err
	}
	msg := body.Error.Message
	if body.Error.Type != "" {
		msg = body.Error.Type + ": " + msg
	}
	return &embeddings.StatusError{Provider: status.Provider, Code: status.Code, Body: msg}
}

// Embedder adapts Client to embeddings.Embedder.
type Embedder struct{ C *Client }

// NewEmbedder creates an embedder for model.
func NewEmbedder(apiKey, model string, opts ...ClientOption) *Embedder {
	return &Embedder{C: NewClient(apiKey, model, opts...)}
}

func (e *Embedder) Model() string { return e.C.Model }

func (e *Embedder) Ping(ctx context.Context) error { return e.C.Ping(ctx) }

func (e *Embedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	v, _, err := e.C.Embed(ctx, docs)
	return v, err
}

func (e *Embedder) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	return embeddings.Single(e.EmbedDocuments(ctx, []string{q}))
}
