package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/medvec/embeddings"
	"github.com/viant/medvec/embeddings/gemini"
	"github.com/viant/medvec/embeddings/ollama"
	"github.com/viant/medvec/embeddings/openai"
	"github.com/viant/medvec/embeddings/vertexai"
	"github.com/viant/medvec/service"
	"github.com/viant/medvec/source"
	"github.com/viant/medvec/source/sqlsource"
	"github.com/viant/medvec/vectordb"
	"github.com/viant/medvec/vectordb/mem"
	"github.com/viant/medvec/vectordb/sqlitevec"
	"go.uber.org/zap"
)

const (
	defaultIndexPath = ".medvec/index.sqlite"
	geminiTaskType   = "SEMANTIC_SIMILARITY"
)

// newService wires the index, embedder and source described by the configuration.
func (a *app) newService(ctx context.Context) (*service.Service, func(), error) {
	cfg := a.cfg
	index, err := openIndex(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := selectEmbedder(cfg.Embedder)
	if err != nil {
		_ = index.Close()
		return nil, nil, err
	}
	var closers []func() error
	opts := []service.Option{
		service.WithIndex(index),
		service.WithEmbedder(embeddings.NewLimited(embedder,
			embeddings.WithTimeout(cfg.EmbedderTimeout()),
			embeddings.WithRate(cfg.Embedder.RatePerSecond, cfg.Embedder.Burst))),
		service.WithLogger(a.logger),
		service.WithSyncPolicy(cfg.Sync.Policy),
		service.WithLockFile(cfg.Store.LockFile),
		service.WithBatchSize(cfg.Sync.BatchSize),
		service.WithEmbedConcurrency(cfg.Sync.Concurrency),
		service.WithModel(cfg.Embedder.Model),
		service.WithNamespace(cfg.Namespace),
		service.WithIndexTimeout(cfg.StoreTimeout()),
		service.WithLexicalScorer(cfg.Search.Lexical),
	}
	if cfg.Source.DSN != "" {
		reader, closer := a.openSource(ctx, cfg.Source)
		if closer != nil {
			closers = append(closers, closer)
		}
		opts = append(opts, service.WithSource(reader))
	}
	svc, err := service.NewService(opts...)
	if err != nil {
		_ = index.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := svc.Close(); err != nil {
			a.logger.Warn("close index", zap.Error(err))
		}
		for _, closer := range closers {
			_ = closer()
		}
	}
	return svc, cleanup, nil
}

func openIndex(ctx context.Context, cfg *service.Config) (vectordb.Index, error) {
	switch cfg.Store.Kind {
	case "memory":
		return mem.NewStore(ctx, mem.WithSnapshotURL(cfg.Store.SnapshotURL))
	default:
		dsn := cfg.Store.DSN
		if dsn == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("store: %w", err)
			}
			dsn = filepath.Join(home, defaultIndexPath)
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("store: %w", err)
			}
		}
		opts := []sqlitevec.Option{sqlitevec.WithDSN(dsn), sqlitevec.WithNamespace(cfg.Namespace)}
		if cfg.Store.Table != "" {
			opts = append(opts, sqlitevec.WithTable(cfg.Store.Table))
		}
		return sqlitevec.NewStore(ctx, opts...)
	}
}

// openSource opens the patient database; an unreachable database yields a
// reader that reports the failure on use so health can still be served.
func (a *app) openSource(ctx context.Context, cfg service.SourceConfig) (source.Reader, func() error) {
	db, err := sqlsource.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		a.logger.Warn("source unavailable", zap.Error(err))
		return unavailable{err: err}, nil
	}
	var opts []sqlsource.Option
	if cfg.Table != "" {
		opts = append(opts, sqlsource.WithTable(cfg.Table))
	}
	if cfg.Limit > 0 {
		opts = append(opts, sqlsource.WithLimit(cfg.Limit))
	}
	reader, err := sqlsource.New(db, opts...)
	if err != nil {
		_ = db.Close()
		return unavailable{err: err}, nil
	}
	return reader, db.Close
}

type unavailable struct{ err error }

func (u unavailable) ReadAll(ctx context.Context) ([]string, error) { return nil, u.err }

func (u unavailable) Ping(ctx context.Context) error { return u.err }

func selectEmbedder(cfg service.EmbedderConfig) (embeddings.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "simple":
		return service.NewSimpleEmbedder(cfg.Dimension), nil
	case "", "openai":
		var opts []openai.ClientOption
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.NewEmbedder(cfg.APIKey, cfg.Model, opts...), nil
	case "ollama":
		return &ollama.Embedder{C: ollama.NewClient(cfg.Model, cfg.BaseURL)}, nil
	case "vertexai":
		project := cfg.Project
		if project == "" {
			project = os.Getenv("VERTEXAI_PROJECT_ID")
		}
		return vertexai.NewEmbedder(project, cfg.Model, cfg.Location, cfg.Scopes), nil
	case "gemini":
		return gemini.NewEmbedder(cfg.APIKey, cfg.Model, geminiTaskType), nil
	}
	return nil, fmt.Errorf("embedder: unsupported provider %q", cfg.Provider)
}
