package mem

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/viant/afs/file"
	"github.com/viant/bintly"
	"github.com/viant/medvec/record"
)

const snapshotVersion int16 = 1

func (s *Store) persist(ctx context.Context) error {
	s.RLock()
	entries := s.sortedEntries()
	s.RUnlock()
	data, err := encodeSnapshot(entries)
	if err != nil {
		return err
	}
	if ok, _ := s.fs.Exists(ctx, s.snapshotURL); ok {
		_ = s.fs.Delete(ctx, s.snapshotURL)
	}
	return s.fs.Upload(ctx, s.snapshotURL, file.DefaultFileOsMode, bytes.NewReader(data))
}

func (s *Store) load(ctx context.Context) error {
	if ok, _ := s.fs.Exists(ctx, s.snapshotURL); !ok {
		return nil
	}
	data, err := s.fs.DownloadWithURL(ctx, s.snapshotURL)
	if err != nil {
		return err
	}
	entries, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	for _, entry := range entries {
		if s.dim != 0 && len(entry.Vector) != s.dim {
			return fmt.Errorf("%w: %s", ErrSnapshotCorrupt, entry.ID)
		}
		s.dim = len(entry.Vector)
		s.entries[entry.ID] = entry
	}
	s.rebuild()
	return nil
}

func encodeSnapshot(entries []record.Entry) ([]byte, error) {
	writers := bintly.NewWriters()
	w := writers.Get()
	defer writers.Put(w)
	w.Int16(snapshotVersion)
	w.Int(len(entries))
	for _, entry := range entries {
		w.String(entry.ID)
		w.Int(entry.Position)
		w.String(entry.Text)
		w.Int(len(entry.Vector))
		for _, v := range entry.Vector {
			w.Float32(v)
		}
		keys := make([]string, 0, len(entry.Metadata))
		for k := range entry.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.Int16(int16(len(keys)))
		for _, k := range keys {
			w.String(k)
			w.String(entry.Metadata[k])
		}
		w.Time(entry.VectorizedAt)
	}
	bs := w.Bytes()
	out := make([]byte, len(bs))
	copy(out, bs)
	return out, nil
}

func decodeSnapshot(data []byte) ([]record.Entry, error) {
	readers := bintly.NewReaders()
	r := readers.Get()
	defer readers.Put(r)
	if err := r.FromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	var version int16
	r.Int16(&version)
	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrSnapshotCorrupt, version)
	}
	var count int
	r.Int(&count)
	if count < 0 || count > len(data) {
		return nil, fmt.Errorf("%w: entry count %d", ErrSnapshotCorrupt, count)
	}
	out := make([]record.Entry, 0, count)
	for i := 0; i < count; i++ {
		var entry record.Entry
		r.String(&entry.ID)
		r.Int(&entry.Position)
		r.String(&entry.Text)
		var dim int
		r.Int(&dim)
		if dim <= 0 || dim > len(data) {
			return nil, fmt.Errorf("%w: %s dimension %d", ErrSnapshotCorrupt, entry.ID, dim)
		}
		entry.Vector = make([]float32, dim)
		for j := range entry.Vector {
			r.Float32(&entry.Vector[j])
		}
		var size int16
		r.Int16(&size)
		if size < 0 {
			return nil, fmt.Errorf("%w: %s metadata size %d", ErrSnapshotCorrupt, entry.ID, size)
		}
		entry.Metadata = make(map[string]string, size)
		for j := 0; j < int(size); j++ {
			var key, value string
			r.String(&key)
			r.String(&value)
			entry.Metadata[key] = value
		}
		r.Time(&entry.VectorizedAt)
		if entry.ID == "" {
			return nil, fmt.Errorf("%w: empty identifier at %d", ErrSnapshotCorrupt, i)
		}
		out = append(out, entry)
	}
	return out, nil
}
