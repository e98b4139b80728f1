package mem

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs/url"
	"github.com/viant/bintly"
	"github.com/viant/medvec/record"
	"github.com/viant/medvec/vectordb"
	"github.com/viant/medvec/vectordb/meta"
)

func entry(pos int, text string, vec ...float32) record.Entry {
	return record.Entry{
		ID:           record.ID(pos),
		Position:     pos,
		Text:         text,
		Vector:       vec,
		Metadata:     map[string]string{meta.IndexKey: text},
		VectorizedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestStore_AddQueryDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(ctx)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Add(ctx,
		entry(0, "east", 1, 0, 0),
		entry(1, "north", 0, 1, 0),
		entry(2, "up", 0, 0, 1),
	))
	got, err := s.QueryNearest(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "demo_patient_1", got[0].ID)
	assert.InDelta(t, 0, got[0].Distance, 1e-6)

	require.NoError(t, s.Add(ctx, entry(1, "north replaced", 0, 0, 1)))
	got, err = s.QueryNearest(ctx, []float32{0, 0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"demo_patient_1", "demo_patient_2"}, []string{got[0].ID, got[1].ID})
	assert.Equal(t, "north replaced", got[0].Text)

	require.NoError(t, s.Delete(ctx, "demo_patient_1", "missing"))
	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"demo_patient_0", "demo_patient_2"}, []string{all[0].ID, all[1].ID})
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, entry(0, "a", 1, 0)))
	assert.ErrorIs(t, s.Add(ctx, entry(1, "b", 1, 0, 0)), ErrDimensionMismatch)
	_, err = s.QueryNearest(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Error(t, s.Add(ctx, record.Entry{ID: record.ID(2)}))
}

func TestStore_RejectedBatchKeepsDimensionUnset(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Add(ctx, entry(0, "a", 1, 0, 0), entry(1, "b", 1, 0, 0, 0)), ErrDimensionMismatch)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.Add(ctx, entry(0, "a", 1, 0, 0, 0), entry(1, "b", 0, 1, 0, 0)))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_EmptyAndClosed(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(ctx)
	require.NoError(t, err)
	got, err := s.QueryNearest(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, s.Close())
	_, err = s.GetAll(ctx)
	assert.ErrorIs(t, err, vectordb.ErrClosed)
	assert.ErrorIs(t, s.Add(ctx, entry(0, "a", 1)), vectordb.ErrClosed)
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	URL := url.Join(filepath.Join(t.TempDir(), "snap"), "patients.bin")
	s, err := NewStore(ctx, WithSnapshotURL(URL), WithAutoPersist(true))
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, entry(0, "Patient Ana", 1, 0), entry(1, "Patient Luis", 0, 1)))
	require.NoError(t, s.Close())

	restored, err := NewStore(ctx, WithSnapshotURL(URL))
	require.NoError(t, err)
	defer restored.Close()
	all, err := restored.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Patient Luis", all[1].Text)
	assert.Equal(t, []float32{0, 1}, all[1].Vector)
	assert.Equal(t, "Patient Ana", all[0].Metadata[meta.IndexKey])
	assert.True(t, all[0].VectorizedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	got, err := restored.QueryNearest(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "demo_patient_1", got[0].ID)
}

func TestDecodeSnapshot_Corrupt(t *testing.T) {
	writers := bintly.NewWriters()
	w := writers.Get()
	defer writers.Put(w)
	w.Int16(snapshotVersion + 6)
	w.Int(0)
	_, err := decodeSnapshot(w.Bytes())
	assert.ErrorIs(t, err, ErrSnapshotCorrupt)
}
