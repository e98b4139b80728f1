package service

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/minio/highwayhash"
)

const simpleModel = "simple"

var tokenKey = []byte("medvec-simple-embedder-token-key")

// SimpleEmbedder hashes lower-cased tokens into a normalized bag-of-words vector.
// Texts sharing words are close; it needs no provider and is used for local runs and tests.
type SimpleEmbedder struct {
	Dim int
}

// NewSimpleEmbedder constructs a simple deterministic embedder.
func NewSimpleEmbedder(dim int) *SimpleEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &SimpleEmbedder{Dim: dim}
}

// EmbedDocuments embeds documents deterministically.
func (e *SimpleEmbedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	out := make([][]float32, len(docs))
	for i, s := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = embedString(s, e.Dim)
	}
	return out, nil
}

// EmbedQuery embeds a query deterministically.
func (e *SimpleEmbedder) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return embedString(q, e.Dim), nil
}

// Model returns the embedder name recorded with entries.
func (e *SimpleEmbedder) Model() string { return simpleModel }

func embedString(s string, dim int) []float32 {
	if dim <= 0 {
		dim = 64
	}
	v := make([]float32, dim)
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '@'
	})
	for _, token := range tokens {
		sum := highwayhash.Sum64([]byte(token), tokenKey)
		v[sum%uint64(dim)] += 1
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
