package mem

// Option configures the Store.
type Option func(s *Store)

// WithSnapshotURL sets the afs URL (file://, mem://, gs://...) the store loads from and persists to.
func WithSnapshotURL(URL string) Option {
	return func(s *Store) { s.snapshotURL = URL }
}

// WithAutoPersist persists the snapshot after every mutation.
func WithAutoPersist(enabled bool) Option {
	return func(s *Store) { s.autoPersist = enabled }
}

// WithCandidates sets the minimum number of graph candidates re-ranked per query.
func WithCandidates(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.candidates = n
		}
	}
}
