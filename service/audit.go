package service

import (
	"context"
	"strings"

	"github.com/viant/medvec/record"
	"github.com/viant/medvec/vectordb/meta"
)

const summarySamples = 3

// Audit compares every indexed position with texts without modifying the index.
// A position drifts when its stored text or content hash differs from the source.
func (s *Service) Audit(ctx context.Context, texts []string) (*AuditReport, error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	report := &AuditReport{
		Existing:     len(snapshot),
		Total:        len(texts),
		ProbeDetects: Decide(snapshot, texts, false).Mutates(),
	}
	byPosition := make(map[int]record.Entry, len(snapshot))
	for _, entry := range snapshot {
		pos, err := record.Position(entry.ID)
		if err != nil || pos >= len(texts) {
			report.Extra = append(report.Extra, entry.ID)
			continue
		}
		byPosition[pos] = entry
	}
	for pos, text := range texts {
		entry, ok := byPosition[pos]
		if !ok {
			report.Missing = append(report.Missing, pos)
			continue
		}
		if drifted(entry, text) {
			report.Drifted = append(report.Drifted, pos)
		}
	}
	report.InSync = len(report.Missing) == 0 && len(report.Drifted) == 0 && len(report.Extra) == 0
	return report, nil
}

// AuditSource audits the index against the configured source.
func (s *Service) AuditSource(ctx context.Context) (*AuditReport, error) {
	if s.source == nil {
		return nil, opError("read", ErrSourceUnavailable, -1, "", errSourceNotConfigured)
	}
	texts, err := s.source.ReadAll(ctx)
	if err != nil {
		return nil, opError("read", ErrSourceUnavailable, -1, "", err)
	}
	return s.Audit(ctx, texts)
}

func drifted(entry record.Entry, text string) bool {
	if entry.Text != text {
		return true
	}
	stored := meta.GetString(entry.Metadata, meta.ContentHashKey)
	if stored == "" {
		return false
	}
	hash, err := meta.ContentHash(text)
	return err != nil || hash != stored
}

// Summary describes the indexed patient data.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Namespace: s.namespace, Total: len(snapshot), Samples: []string{}}
	for i, entry := range snapshot {
		text := strings.ToLower(entry.Text)
		if strings.Contains(text, "email") || strings.Contains(text, "@") {
			summary.WithEmail++
		}
		if strings.Contains(text, "phone") || strings.Contains(text, "teléfono") || strings.Contains(text, "telefono") {
			summary.WithPhone++
		}
		if i < summarySamples {
			summary.Samples = append(summary.Samples, entry.Text)
		}
	}
	return summary, nil
}
