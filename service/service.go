package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/medvec/embeddings"
	"github.com/viant/medvec/source"
	"github.com/viant/medvec/vectordb"
	"github.com/viant/medvec/vectordb/lock"
	"github.com/viant/medvec/vectordb/meta"
	"go.uber.org/zap"
)

const (
	defaultBatchSize      = 16
	defaultDegradedWindow = 5 * time.Minute
)

// Option configures the Service.
type Option func(*Service)

// WithIndex sets the vector index.
func WithIndex(index vectordb.Index) Option {
	return func(s *Service) { s.index = index }
}

// WithEmbedder sets the embedding provider.
func WithEmbedder(embedder embeddings.Embedder) Option {
	return func(s *Service) { s.embedder = embedder }
}

// WithSource sets the source reader used by SyncSource.
func WithSource(reader source.Reader) Option {
	return func(s *Service) { s.source = reader }
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSyncPolicy sets the overlapping sync policy.
func WithSyncPolicy(policy SyncPolicy) Option {
	return func(s *Service) { s.policy = policy }
}

// WithLockFile serializes sync cycles across processes through a lock file.
func WithLockFile(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.fileLock = lock.New(path)
		}
	}
}

// WithBatchSize sets how many descriptions are embedded per provider call.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithEmbedConcurrency sets how many provider calls run at once during a cycle.
func WithEmbedConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithModel sets the model name recorded with entries when the embedder does not report one.
func WithModel(model string) Option {
	return func(s *Service) { s.model = model }
}

// WithNamespace sets the namespace recorded with entries.
func WithNamespace(namespace string) Option {
	return func(s *Service) {
		if namespace != "" {
			s.namespace = namespace
		}
	}
}

// WithIndexTimeout bounds every index call.
func WithIndexTimeout(d time.Duration) Option {
	return func(s *Service) { s.indexTimeout = d }
}

// WithLexicalScorer replaces the fallback scorer.
func WithLexicalScorer(scorer *LexicalScorer) Option {
	return func(s *Service) {
		if scorer != nil {
			s.lexical = scorer
		}
	}
}

// WithClock sets the clock used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDegradedWindow sets how long a provider failure keeps the embedder degraded.
func WithDegradedWindow(d time.Duration) Option {
	return func(s *Service) { s.degradedWindow = d }
}

// Service synchronizes the patient index and serves similarity queries.
type Service struct {
	index          vectordb.Index
	embedder       embeddings.Embedder
	source         source.Reader
	logger         *zap.Logger
	policy         SyncPolicy
	fileLock       *lock.File
	batchSize      int
	concurrency    int
	model          string
	namespace      string
	indexTimeout   time.Duration
	lexical        *LexicalScorer
	now            func() time.Time
	degradedWindow time.Duration

	syncSem  chan struct{}
	lastSync atomic.Pointer[SyncResult]

	providerMu      sync.Mutex
	providerErr     error
	providerErrTime time.Time
}

// NewService creates a new Service.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		logger:         zap.NewNop(),
		policy:         SyncWait,
		batchSize:      defaultBatchSize,
		concurrency:    1,
		namespace:      meta.DefaultNamespace,
		lexical:        DefaultLexicalScorer(),
		now:            time.Now,
		degradedWindow: defaultDegradedWindow,
		syncSem:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.index == nil {
		return nil, fmt.Errorf("service: vector index is required")
	}
	switch s.policy {
	case SyncWait, SyncReject:
	default:
		return nil, fmt.Errorf("service: unsupported sync policy %q", s.policy)
	}
	return s, nil
}

// Close releases the index.
func (s *Service) Close() error {
	return s.index.Close()
}

// Namespace returns the entry namespace.
func (s *Service) Namespace() string { return s.namespace }

func (s *Service) resolveEmbedder() (embeddings.Embedder, error) {
	if s.embedder != nil {
		return s.embedder, nil
	}
	return nil, fmt.Errorf("embedder is required")
}

func (s *Service) modelName() string {
	if s.embedder == nil {
		return s.model
	}
	return embeddings.ModelOf(s.embedder, s.model)
}

func (s *Service) indexContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.indexTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.indexTimeout)
}

func (s *Service) recordProvider(err error) {
	s.providerMu.Lock()
	defer s.providerMu.Unlock()
	if err == nil {
		s.providerErr = nil
		return
	}
	s.providerErr = err
	s.providerErrTime = s.now()
}

func (s *Service) recentProviderError() error {
	s.providerMu.Lock()
	defer s.providerMu.Unlock()
	if s.providerErr == nil || s.now().Sub(s.providerErrTime) > s.degradedWindow {
		return nil
	}
	return s.providerErr
}
