package service

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/viant/medvec/embeddings"
	"github.com/viant/medvec/record"
	"github.com/viant/medvec/vectordb"
	"go.uber.org/zap"
)

// Query returns the entries most similar to req.Text, best first.
// Equal scores are ordered by record.Less, so demo_patient_2 precedes demo_patient_10.
// When the embedding provider fails the query is answered by the lexical scorer.
func (s *Service) Query(ctx context.Context, req QueryRequest) ([]record.Match, error) {
	if err := validateQuery(req); err != nil {
		return nil, err
	}
	vec, err := s.embedQuery(ctx, req.Text)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("embedding query failed, using lexical fallback",
			zap.Bool("temporary", embeddings.Temporary(err)), zap.Error(err))
		return s.lexicalQuery(ctx, req)
	}
	ictx, cancel := s.indexContext(ctx)
	defer cancel()
	neighbors, err := s.index.QueryNearest(ictx, vec, req.TopK)
	if err != nil {
		return nil, opError("query", ErrIndexUnavailable, -1, "", err)
	}
	matches := make([]record.Match, 0, len(neighbors))
	for _, n := range neighbors {
		score := clamp(1 - n.Distance)
		if score < req.Threshold {
			continue
		}
		matches = append(matches, neighborMatch(n, score))
	}
	sortMatches(matches)
	return matches, nil
}

func validateQuery(req QueryRequest) error {
	switch {
	case req.Text == "":
		return invalid("query text is required")
	case req.TopK <= 0:
		return invalid("top k must be positive, got %d", req.TopK)
	case math.IsNaN(req.Threshold) || req.Threshold < 0 || req.Threshold > 1:
		return invalid("threshold must be within [0,1], got %v", req.Threshold)
	}
	return nil
}

func (s *Service) embedQuery(ctx context.Context, text string) ([]float32, error) {
	embedder, err := s.resolveEmbedder()
	if err != nil {
		return nil, err
	}
	vec, err := embedder.EmbedQuery(ctx, text)
	if err == nil && len(vec) == 0 {
		err = embeddings.ErrVectorCount
	}
	if ctx.Err() == nil {
		s.recordProvider(err)
	}
	return vec, err
}

func (s *Service) lexicalQuery(ctx context.Context, req QueryRequest) ([]record.Match, error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var matches []record.Match
	for _, entry := range snapshot {
		score := clamp(s.lexical.Score(req.Text, entry.Text))
		if score < req.Threshold {
			continue
		}
		matches = append(matches, record.Match{
			ID:          entry.ID,
			Score:       score,
			Description: entry.Text,
			Metadata:    entry.Metadata,
			Method:      record.MethodLexical,
		})
	}
	sortMatches(matches)
	if len(matches) > req.TopK {
		matches = matches[:req.TopK]
	}
	if matches == nil {
		matches = []record.Match{}
	}
	return matches, nil
}

func neighborMatch(n vectordb.Neighbor, score float64) record.Match {
	return record.Match{
		ID:          n.ID,
		Score:       score,
		Description: n.Text,
		Metadata:    n.Metadata,
		Method:      record.MethodVector,
	}
}

func sortMatches(matches []record.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return record.Less(matches[i].ID, matches[j].ID)
	})
}

func clamp(score float64) float64 {
	switch {
	case math.IsNaN(score) || score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}
