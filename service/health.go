package service

import (
	"context"
	"fmt"

	"github.com/viant/medvec/embeddings"
	"github.com/viant/medvec/source"
)

// Health probes the index, the embedding provider and the source.
// It never fails; problems are reported per dependency.
func (s *Service) Health(ctx context.Context) *HealthReport {
	report := &HealthReport{Namespace: s.namespace, Model: s.modelName(), LastSync: s.LastSync()}

	sourceHealth := DependencyHealth{Name: "source", Status: StatusHealthy}
	switch {
	case s.source == nil:
		sourceHealth.Detail = "not configured"
	default:
		if pinger, ok := s.source.(source.Pinger); ok {
			if err := pinger.Ping(ctx); err != nil {
				sourceHealth.Status, sourceHealth.Detail = StatusUnavailable, err.Error()
			}
		}
		if counter, ok := s.source.(source.Counter); ok && sourceHealth.Status == StatusHealthy {
			count, err := counter.Count(ctx)
			if err != nil {
				sourceHealth.Status, sourceHealth.Detail = StatusUnavailable, err.Error()
			} else {
				report.SourceRecords = &count
			}
		}
	}

	indexHealth := DependencyHealth{Name: "index", Status: StatusHealthy}
	ictx, cancel := s.indexContext(ctx)
	count, err := s.index.Count(ictx)
	cancel()
	switch {
	case err != nil:
		indexHealth.Status, indexHealth.Detail = StatusUnavailable, err.Error()
	case report.SourceRecords != nil && *report.SourceRecords != count:
		indexHealth.Status = StatusDegraded
		indexHealth.Detail = fmt.Sprintf("indexed %d of %d source records", count, *report.SourceRecords)
	}
	report.Indexed = count

	report.Dependencies = []DependencyHealth{indexHealth, s.embedderHealth(ctx), sourceHealth}
	report.Status = StatusHealthy
	for _, dep := range report.Dependencies {
		if dep.Status.rank() > report.Status.rank() {
			report.Status = dep.Status
		}
	}
	return report
}

func (s *Service) embedderHealth(ctx context.Context) DependencyHealth {
	health := DependencyHealth{Name: "embedder", Status: StatusHealthy}
	if s.embedder == nil {
		health.Status, health.Detail = StatusUnavailable, "not configured"
		return health
	}
	if checker, ok := s.embedder.(embeddings.HealthChecker); ok {
		if err := checker.Ping(ctx); err != nil {
			health.Status, health.Detail = StatusUnavailable, err.Error()
			return health
		}
	}
	if err := s.recentProviderError(); err != nil {
		health.Status, health.Detail = StatusDegraded, "recent failure: "+err.Error()
	}
	return health
}

// LastSync returns the most recent sync result, or nil before the first cycle.
func (s *Service) LastSync() *SyncResult {
	last := s.lastSync.Load()
	if last == nil {
		return nil
	}
	result := *last
	return &result
}
