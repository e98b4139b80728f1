package mem

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/viant/afs"
	"github.com/viant/medvec/record"
	"github.com/viant/medvec/vectordb"
	"github.com/viant/medvec/vectordb/meta"
)

const defaultCandidates = 32

var _ vectordb.Index = (*Store)(nil)

// Store is an in-memory vectordb.Index backed by an HNSW graph.
// Graph candidates are re-ranked by exact cosine distance.
type Store struct {
	entries     map[string]record.Entry
	graph       *hnsw.Graph[string]
	dim         int
	stale       bool
	candidates  int
	snapshotURL string
	autoPersist bool
	fs          afs.Service
	closed      bool
	sync.RWMutex
}

// NewStore creates a store, loading the snapshot when one exists.
func NewStore(ctx context.Context, options ...Option) (*Store, error) {
	s := &Store{
		entries:    make(map[string]record.Entry),
		graph:      hnsw.NewGraph[string](),
		candidates: defaultCandidates,
		fs:         afs.New(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.snapshotURL != "" {
		if err := s.load(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add upserts entries; replacing an existing entry schedules a graph rebuild.
func (s *Store) Add(ctx context.Context, entries ...record.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.Lock()
	if s.closed {
		s.Unlock()
		return vectordb.ErrClosed
	}
	dim := s.dim
	for _, entry := range entries {
		if len(entry.Vector) == 0 {
			s.Unlock()
			return fmt.Errorf("mem: entry %s has no vector", entry.ID)
		}
		if dim == 0 {
			dim = len(entry.Vector)
		}
		if len(entry.Vector) != dim {
			s.Unlock()
			return fmt.Errorf("%w: %s has %d, index has %d", ErrDimensionMismatch, entry.ID, len(entry.Vector), dim)
		}
	}
	s.dim = dim
	for _, entry := range entries {
		entry.Metadata = meta.Clone(entry.Metadata)
		if _, ok := s.entries[entry.ID]; ok {
			s.stale = true
		} else if !s.stale {
			s.graph.Add(hnsw.MakeNode(entry.ID, entry.Vector))
		}
		s.entries[entry.ID] = entry
	}
	s.Unlock()
	return s.maybePersist(ctx)
}

// Delete removes entries; unknown identifiers are ignored.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	s.Lock()
	if s.closed {
		s.Unlock()
		return vectordb.ErrClosed
	}
	removed := 0
	for _, id := range ids {
		if _, ok := s.entries[id]; ok {
			delete(s.entries, id)
			removed++
		}
	}
	if removed > 0 {
		s.stale = true
	}
	if len(s.entries) == 0 {
		s.dim = 0
	}
	s.Unlock()
	if removed == 0 {
		return nil
	}
	return s.maybePersist(ctx)
}

// GetAll returns every entry in position order.
func (s *Store) GetAll(ctx context.Context) ([]record.Entry, error) {
	s.RLock()
	defer s.RUnlock()
	if s.closed {
		return nil, vectordb.ErrClosed
	}
	return s.sortedEntries(), nil
}

// Count returns the number of entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.RLock()
	defer s.RUnlock()
	if s.closed {
		return 0, vectordb.ErrClosed
	}
	return len(s.entries), nil
}

// QueryNearest searches the graph and re-ranks candidates by exact distance.
func (s *Store) QueryNearest(ctx context.Context, vec []float32, k int) ([]vectordb.Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return nil, vectordb.ErrClosed
	}
	if len(s.entries) == 0 {
		return nil, nil
	}
	if len(vec) != s.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vec), s.dim)
	}
	if s.stale {
		s.rebuild()
	}
	limit := k
	if limit < s.candidates {
		limit = s.candidates
	}
	nodes := s.graph.Search(vec, limit)
	out := make([]vectordb.Neighbor, 0, len(nodes))
	for _, node := range nodes {
		entry, ok := s.entries[node.Key]
		if !ok {
			continue
		}
		out = append(out, vectordb.Neighbor{
			ID:       entry.ID,
			Text:     entry.Text,
			Metadata: meta.Clone(entry.Metadata),
			Distance: vectordb.CosineDistance(vec, entry.Vector),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return record.Less(out[i].ID, out[j].ID)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Close persists the snapshot (when configured) and releases the store.
func (s *Store) Close() error {
	s.Lock()
	if s.closed {
		s.Unlock()
		return nil
	}
	s.closed = true
	s.Unlock()
	if s.snapshotURL == "" {
		return nil
	}
	return s.persist(context.Background())
}

// Persist writes the snapshot to the configured URL.
func (s *Store) Persist(ctx context.Context) error {
	if s.snapshotURL == "" {
		return fmt.Errorf("mem: snapshot url not configured")
	}
	return s.persist(ctx)
}

func (s *Store) maybePersist(ctx context.Context) error {
	if !s.autoPersist || s.snapshotURL == "" {
		return nil
	}
	return s.persist(ctx)
}

func (s *Store) rebuild() {
	g := hnsw.NewGraph[string]()
	for _, entry := range s.sortedEntries() {
		g.Add(hnsw.MakeNode(entry.ID, entry.Vector))
	}
	s.graph = g
	s.stale = false
}

func (s *Store) sortedEntries() []record.Entry {
	out := make([]record.Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entry.Metadata = meta.Clone(entry.Metadata)
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}
