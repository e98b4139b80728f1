package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/viant/medvec/record"
	"github.com/viant/medvec/vectordb"
	"github.com/viant/medvec/vectordb/sqlitevec"
)

var patients = []string{
	"Paciente masculino de 45 años con diabetes tipo 2, contacto teléfono 555-0101.",
	"Paciente femenino de 32 años con asma leve, email ana@example.com.",
	"Paciente masculino de 67 años con hipertensión arterial.",
	"Paciente femenino de 58 años sin antecedentes relevantes.",
	"Paciente masculino de 23 años, deportista, sin medicación.",
	"Paciente femenino de 71 años con diabetes e hipertension.",
}

func newTestIndex(t *testing.T) *sqlitevec.Store {
	t.Helper()
	store, err := sqlitevec.NewStore(context.Background(), sqlitevec.WithDSN(filepath.Join(t.TempDir(), "index.sqlite")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestService(t *testing.T, index vectordb.Index, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithIndex(index)}, opts...)
	svc, err := NewService(opts...)
	require.NoError(t, err)
	return svc
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Patient %d with identification number %d.", i, 1000+i)
	}
	return out
}

// recordingEmbedder records embedded texts and fails on demand.
type recordingEmbedder struct {
	inner *SimpleEmbedder

	mu       sync.Mutex
	calls    int
	embedded []string
	// failDocs returns an error for the given (1-based) call and batch.
	failDocs  func(call int, docs []string) error
	failQuery error
	pingErr   error
}

func newRecordingEmbedder() *recordingEmbedder {
	return &recordingEmbedder{inner: NewSimpleEmbedder(64)}
}

func (r *recordingEmbedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	r.mu.Lock()
	r.calls++
	call, fail := r.calls, r.failDocs
	r.mu.Unlock()
	if fail != nil {
		if err := fail(call, docs); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	r.embedded = append(r.embedded, docs...)
	r.mu.Unlock()
	return r.inner.EmbedDocuments(ctx, docs)
}

func (r *recordingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	r.mu.Lock()
	err := r.failQuery
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.inner.EmbedQuery(ctx, text)
}

func (r *recordingEmbedder) Ping(ctx context.Context) error { return r.pingErr }

func (r *recordingEmbedder) Model() string { return "recording" }

func (r *recordingEmbedder) reset() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.embedded
	r.embedded = nil
	return out
}

func (r *recordingEmbedder) setFailQuery(err error) {
	r.mu.Lock()
	r.failQuery = err
	r.mu.Unlock()
}

func (r *recordingEmbedder) setFailDocs(fn func(call int, docs []string) error) {
	r.mu.Lock()
	r.failDocs = fn
	r.mu.Unlock()
}

// flakyIndex fails selected index operations.
type flakyIndex struct {
	vectordb.Index
	failGetAll error
	failCount  error
	failQuery  error
	failAdd    error
}

func (f *flakyIndex) GetAll(ctx context.Context) ([]record.Entry, error) {
	if f.failGetAll != nil {
		return nil, f.failGetAll
	}
	return f.Index.GetAll(ctx)
}

func (f *flakyIndex) Count(ctx context.Context) (int, error) {
	if f.failCount != nil {
		return 0, f.failCount
	}
	return f.Index.Count(ctx)
}

func (f *flakyIndex) QueryNearest(ctx context.Context, vec []float32, k int) ([]vectordb.Neighbor, error) {
	if f.failQuery != nil {
		return nil, f.failQuery
	}
	return f.Index.QueryNearest(ctx, vec, k)
}

func (f *flakyIndex) Add(ctx context.Context, entries ...record.Entry) error {
	if f.failAdd != nil {
		return f.failAdd
	}
	return f.Index.Add(ctx, entries...)
}

var errBoom = errors.New("boom")

func TestNewService(t *testing.T) {
	_, err := NewService()
	require.Error(t, err)

	_, err = NewService(WithIndex(newTestIndex(t)), WithSyncPolicy("later"))
	require.Error(t, err)

	svc := newTestService(t, newTestIndex(t), WithNamespace(""))
	require.Equal(t, "demographic_patients_namespace", svc.Namespace())
}
