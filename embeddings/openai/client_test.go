package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/medvec/embeddings"
)

func TestEmbedder_EmbedDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		resp := Response{Data: []EmbeddingData{
			{Index: 1, Embedding: []float32{0, 1}},
			{Index: 0, Embedding: []float32{1, 0}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewEmbedder("key", "", WithBaseURL(srv.URL))
	assert.Equal(t, "text-embedding-3-small", e.Model())
	vecs, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)

	_, err = e.EmbedQuery(context.Background(), "a")
	assert.Error(t, err)
}

func TestEmbedder_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Response{Data: []EmbeddingData{{Embedding: []float32{1}}}})
	}))
	defer srv.Close()
	e := NewEmbedder("key", "m", WithBaseURL(srv.URL))
	_, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, embeddings.ErrVectorCount)
}

func TestEmbedder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()
	e := NewEmbedder("key", "m", WithBaseURL(srv.URL))
	_, err := e.EmbedQuery(context.Background(), "q")
	assert.EqualError(t, err, "openai: status 429: rate_limit: slow down")
	var status *embeddings.StatusError
	require.True(t, errors.As(err, &status))
	assert.True(t, status.Temporary())
	assert.EqualError(t, e.Ping(context.Background()), "openai: status 401")
}

func TestClient_RequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c := NewClient("", "m")
	_, _, err := c.Embed(context.Background(), []string{"a"})
	assert.Error(t, err)
}
