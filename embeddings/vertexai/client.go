// Package vertexai embeds texts through Vertex AI text embedding models.
package vertexai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/viant/medvec/embeddings"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	provider          = "vertexai"
	defaultLocation   = "us-central1"
	defaultModel      = "text-embedding-004"
	defaultHTTPTO     = 30 * time.Second
	defaultScopeCloud = "https://www.googleapis.com/auth/cloud-platform"
)

type ClientOption func(*Client)

func WithLocation(location string) ClientOption {
	return func(c *Client) {
		if location != "" {
			c.Location = location
		}
	}
}

func WithScopes(scopes ...string) ClientOption {
	return func(c *Client) {
		c.Scopes = append(c.Scopes, scopes...)
	}
}

// WithTokenSource replaces application default credentials.
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return func(c *Client) { c.tokenSource = ts }
}

// WithEndpoint overrides the predict endpoint, e.g. for a private service connect address.
func WithEndpoint(URL string) ClientOption {
	return func(c *Client) { c.endpointURL = URL }
}

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.Model = model
		}
	}
}

type Client struct {
	ProjectID string
	Location  string
	Model     string
	Scopes    []string

	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	endpointURL string
}

type predictRequest struct {
	Instances []predictInstance `json:"instances"`
}

type predictInstance struct {
	Content string `json:"content"`
}

type predictResponse struct {
	Predictions []predictEmbedding `json:"predictions"`
}

type predictEmbedding struct {
	Embeddings predictEmbeddingValues `json:"embeddings"`
}

type predictEmbeddingValues struct {
	Values []float32 `json:"values"`
}

func NewClient(ctx context.Context, projectID, model string, opts ...ClientOption) (*Client, error) {
	if projectID == "" {
		return nil, errNoProject
	}
	c := &Client{
		ProjectID:  projectID,
		Location:   defaultLocation,
		Model:      model,
		httpClient: &http.Client{Timeout: defaultHTTPTO},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if len(c.Scopes) == 0 {
		c.Scopes = []string{defaultScopeCloud}
	}
	if c.tokenSource != nil {
		return c, nil
	}
	ts, err := google.DefaultTokenSource(ctx, c.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("vertexai: token source: %w", err)
	}
	c.tokenSource = ts
	return c, nil
}

func (c *Client) endpoint() string {
	if c.endpointURL != "" {
		return c.endpointURL
	}
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		c.Location, c.ProjectID, c.Location, c.Model)
}

// Embed calls the predict endpoint; the token count is not reported by Vertex AI.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, int, error) {
	if c == nil {
		return nil, 0, fmt.Errorf("vertexai: client is nil")
	}
	if len(texts) == 0 {
		return nil, 0, fmt.Errorf("vertexai: no input texts")
	}
	token, err := c.tokenSource.Token()
	if err != nil {
		return nil, 0, fmt.Errorf("vertexai: token: %w", err)
	}
	req := predictRequest{Instances: make([]predictInstance, len(texts))}
	for i, t := range texts {
		req.Instances[i].Content = t
	}
	var resp predictResponse
	call := embeddings.Call{
		Provider: provider,
		URL:      c.endpoint(),
		Header:   map[string]string{"Authorization": "Bearer " + token.AccessToken},
		In:       req,
		Out:      &resp,
	}
	if err := call.Do(ctx, c.httpClient); err != nil {
		return nil, 0, err
	}
	vecs := make([][]float32, len(resp.Predictions))
	for i, p := range resp.Predictions {
		vecs[i] = p.Embeddings.Values
	}
	if err := embeddings.CheckCount(vecs, len(texts)); err != nil {
		return nil, 0, err
	}
	return vecs, 0, nil
}
