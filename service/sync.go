package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/viant/medvec/embeddings"
	"github.com/viant/medvec/record"
	"github.com/viant/medvec/vectordb/lock"
	"github.com/viant/medvec/vectordb/meta"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// probeSize is the number of leading positions compared when counts match.
// Drift past the probe with an unchanged count is not detected; use Force or Audit.
const probeSize = 3

// Decide computes the action for a snapshot and the ordered source texts.
func Decide(snapshot []record.Entry, texts []string, force bool) record.Decision {
	existing, total := len(snapshot), len(texts)
	if existing == 0 {
		if total == 0 {
			return record.DecisionNoop
		}
		return record.DecisionFull
	}
	if force {
		return record.DecisionRebuild
	}
	ordered, ok := ordered(snapshot)
	if !ok {
		return record.DecisionRebuild
	}
	switch {
	case existing < total:
		return record.DecisionAppend
	case existing > total:
		return record.DecisionRebuild
	}
	for i := 0; i < min(probeSize, total); i++ {
		if ordered[i].Text != texts[i] {
			return record.DecisionRebuild
		}
	}
	return record.DecisionNoop
}

// ordered returns the snapshot by position when its identifiers are exactly 0..n-1.
func ordered(snapshot []record.Entry) ([]record.Entry, bool) {
	out := make([]record.Entry, len(snapshot))
	seen := make([]bool, len(snapshot))
	for _, entry := range snapshot {
		pos, err := record.Position(entry.ID)
		if err != nil || pos >= len(snapshot) || seen[pos] {
			return nil, false
		}
		seen[pos] = true
		out[pos] = entry
	}
	return out, true
}

// Sync brings the index in line with req.Descriptions.
// On failure the returned result reports the work done before the error.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &SyncResult{CycleID: uuid.NewString(), Started: s.now(), Total: len(req.Descriptions)}
	logger := s.logger.With(zap.String("cycle", result.CycleID), zap.String("namespace", s.namespace))
	err = s.runCycle(ctx, logger, req, result)
	result.Duration = s.now().Sub(result.Started)
	if err != nil {
		result.Error = err.Error()
		logger.Error("sync failed", zap.String("decision", string(result.Decision)),
			zap.Int("embedded", result.Embedded), zap.Int("deleted", result.Deleted), zap.Error(err))
	} else {
		logger.Info("sync completed", zap.String("decision", string(result.Decision)),
			zap.Int("existing", result.Existing), zap.Int("total", result.Total),
			zap.Int("embedded", result.Embedded), zap.Int("deleted", result.Deleted),
			zap.Duration("duration", result.Duration))
	}
	snapshot := *result
	s.lastSync.Store(&snapshot)
	return result, err
}

// SyncSource reads the configured source and syncs the index with it.
func (s *Service) SyncSource(ctx context.Context, force bool) (*SyncResult, error) {
	if s.source == nil {
		return nil, opError("read", ErrSourceUnavailable, -1, "", errSourceNotConfigured)
	}
	descriptions, err := s.source.ReadAll(ctx)
	if err != nil {
		s.logger.Error("source read failed", zap.Error(err))
		return nil, opError("read", ErrSourceUnavailable, -1, "", err)
	}
	return s.Sync(ctx, SyncRequest{Descriptions: descriptions, Force: force})
}

func (s *Service) runCycle(ctx context.Context, logger *zap.Logger, req SyncRequest, result *SyncResult) error {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	result.Existing = len(snapshot)
	result.Decision = Decide(snapshot, req.Descriptions, req.Force)
	logger.Info("sync decision", zap.String("decision", string(result.Decision)),
		zap.Int("existing", result.Existing), zap.Int("total", result.Total), zap.Bool("force", req.Force))

	descriptions := record.Descriptions(req.Descriptions)
	switch result.Decision {
	case record.DecisionNoop:
		return nil
	case record.DecisionFull:
		return s.embedAndAdd(ctx, logger, descriptions, result)
	case record.DecisionAppend:
		return s.embedAndAdd(ctx, logger, descriptions[result.Existing:], result)
	case record.DecisionRebuild:
		if err := s.deleteAll(ctx, logger, snapshot, result); err != nil {
			return err
		}
		return s.embedAndAdd(ctx, logger, descriptions, result)
	}
	return fmt.Errorf("unknown decision %q", result.Decision)
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	if s.policy == SyncReject {
		select {
		case s.syncSem <- struct{}{}:
		default:
			return nil, ErrSyncInProgress
		}
	} else {
		select {
		case s.syncSem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	unlock := func() { <-s.syncSem }
	if s.fileLock == nil {
		return unlock, nil
	}
	var err error
	if s.policy == SyncReject {
		err = s.fileLock.TryLock()
		if errors.Is(err, lock.ErrLocked) {
			err = ErrSyncInProgress
		}
	} else {
		err = s.fileLock.Lock(ctx)
	}
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		if err := s.fileLock.Unlock(); err != nil {
			s.logger.Warn("sync lock release failed", zap.String("path", s.fileLock.Path()), zap.Error(err))
		}
		unlock()
	}, nil
}

func (s *Service) snapshot(ctx context.Context) ([]record.Entry, error) {
	ictx, cancel := s.indexContext(ctx)
	defer cancel()
	snapshot, err := s.index.GetAll(ictx)
	if err != nil {
		return nil, opError("snapshot", ErrIndexUnavailable, -1, "", err)
	}
	return snapshot, nil
}

func (s *Service) deleteAll(ctx context.Context, logger *zap.Logger, snapshot []record.Entry, result *SyncResult) error {
	ids := make([]string, len(snapshot))
	for i, entry := range snapshot {
		ids[i] = entry.ID
	}
	sort.Slice(ids, func(i, j int) bool { return record.Less(ids[i], ids[j]) })
	ictx, cancel := s.indexContext(ctx)
	defer cancel()
	if err := s.index.Delete(ictx, ids...); err != nil {
		return opError("delete", ErrIndexUnavailable, -1, "", err)
	}
	for i, id := range ids {
		logger.Debug("deleted", zap.String("id", id), zap.String("progress", progress(i+1, len(ids))))
	}
	result.Deleted += len(ids)
	logger.Info("deleted existing entries", zap.Int("count", len(ids)))
	return nil
}

type batch struct {
	items   []record.Description
	entries []record.Entry
	err     error
}

// embedAndAdd embeds descriptions in batches and adds them in position order,
// so an interrupted cycle leaves a contiguous indexed prefix.
func (s *Service) embedAndAdd(ctx context.Context, logger *zap.Logger, descriptions []record.Description, result *SyncResult) error {
	if len(descriptions) == 0 {
		return nil
	}
	embedder, err := s.resolveEmbedder()
	if err != nil {
		return opError("embed", ErrProvider, descriptions[0].Position, record.ID(descriptions[0].Position), err)
	}
	var batches []*batch
	for i := 0; i < len(descriptions); i += s.batchSize {
		end := min(i+s.batchSize, len(descriptions))
		batches = append(batches, &batch{items: descriptions[i:end]})
	}
	total := len(descriptions)
	done := 0
	for start := 0; start < len(batches); start += s.concurrency {
		window := batches[start:min(start+s.concurrency, len(batches))]
		s.embedWindow(ctx, embedder, window)
		failure := windowFailure(window)
		if ctx.Err() == nil {
			s.recordProvider(failure)
		}
		for _, b := range window {
			if b.err != nil {
				if failure != nil {
					return failure
				}
				return b.err
			}
			if err := s.add(ctx, b.entries); err != nil {
				return err
			}
			for _, entry := range b.entries {
				done++
				result.Embedded++
				logger.Debug("indexed", zap.String("id", entry.ID), zap.String("progress", progress(done, total)))
			}
			logger.Info("indexed batch", zap.String("from", b.entries[0].ID),
				zap.String("to", b.entries[len(b.entries)-1].ID), zap.String("progress", progress(done, total)))
		}
	}
	return nil
}

func (s *Service) embedWindow(ctx context.Context, embedder embeddings.Embedder, window []*batch) {
	if len(window) == 1 {
		window[0].entries, window[0].err = s.embedBatch(ctx, embedder, window[0].items)
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range window {
		g.Go(func() error {
			b.entries, b.err = s.embedBatch(gctx, embedder, b.items)
			return b.err
		})
	}
	_ = g.Wait()
}

// windowFailure returns the first batch error that is not a cancellation
// caused by a failing sibling batch.
func windowFailure(window []*batch) error {
	var canceled error
	for _, b := range window {
		switch {
		case b.err == nil:
		case !errors.Is(b.err, context.Canceled):
			return b.err
		case canceled == nil:
			canceled = b.err
		}
	}
	return canceled
}

func (s *Service) embedBatch(ctx context.Context, embedder embeddings.Embedder, items []record.Description) ([]record.Entry, error) {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}
	first := items[0].Position
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err == nil {
		err = embeddings.CheckCount(vectors, len(texts))
	}
	if err != nil {
		return nil, opError("embed", ErrProvider, first, record.ID(first), err)
	}
	now := s.now()
	model := s.modelName()
	entries := make([]record.Entry, len(items))
	for i, item := range items {
		metadata, err := s.metadata(item, model, now)
		if err != nil {
			return nil, opError("embed", ErrProvider, item.Position, record.ID(item.Position), err)
		}
		entries[i] = record.Entry{
			ID:           record.ID(item.Position),
			Position:     item.Position,
			Vector:       vectors[i],
			Text:         item.Text,
			Metadata:     metadata,
			VectorizedAt: now,
		}
	}
	return entries, nil
}

func (s *Service) add(ctx context.Context, entries []record.Entry) error {
	ictx, cancel := s.indexContext(ctx)
	defer cancel()
	if err := s.index.Add(ictx, entries...); err != nil {
		return opError("add", ErrIndexUnavailable, entries[0].Position, entries[0].ID, err)
	}
	return nil
}

func (s *Service) metadata(item record.Description, model string, now time.Time) (map[string]string, error) {
	hash, err := meta.ContentHash(item.Text)
	if err != nil {
		return nil, err
	}
	metadata := map[string]string{
		meta.TypeKey:         meta.PatientDescriptionType,
		meta.IndexKey:        strconv.Itoa(item.Position),
		meta.NamespaceKey:    s.namespace,
		meta.VectorizedAtKey: now.UTC().Format(time.RFC3339Nano),
		meta.ContentHashKey:  hash,
	}
	if model != "" {
		metadata[meta.ModelKey] = model
	}
	return metadata, nil
}

func progress(done, total int) string {
	return strconv.Itoa(done) + "/" + strconv.Itoa(total)
}
