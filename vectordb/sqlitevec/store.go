package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/viant/medvec/db/sqliteutil"
	"github.com/viant/medvec/record"
	"github.com/viant/medvec/vectordb"
	"github.com/viant/medvec/vectordb/meta"
	"github.com/viant/sqlite-vec/engine"
	"github.com/viant/sqlite-vec/vector"
)

const defaultTable = "patient_vectors"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var _ vectordb.Index = (*Store)(nil)

// Store is a SQLite backed vectordb.Index; similarity is computed in process
// over the namespace rows.
type Store struct {
	db            *sql.DB
	dsn           string
	table         string
	namespace     string
	ensureSchema  bool
	busyTimeoutMS int
	openedLocally bool
}

// Option configures the store.
type Option func(*Store)

// WithDB sets an existing *sql.DB to use.
func WithDB(db *sql.DB) Option {
	return func(s *Store) { s.db = db }
}

// WithDSN sets the SQLite DSN to open (e.g. /path/to/medvec.sqlite).
func WithDSN(dsn string) Option {
	return func(s *Store) { s.dsn = dsn }
}

// WithTable sets the entry table name (default: patient_vectors).
func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

// WithNamespace scopes every read and write to a namespace.
func WithNamespace(namespace string) Option {
	return func(s *Store) { s.namespace = namespace }
}

// WithEnsureSchema controls whether the table is created automatically.
func WithEnsureSchema(enabled bool) Option {
	return func(s *Store) { s.ensureSchema = enabled }
}

// WithBusyTimeout sets the busy_timeout pragma used for DSN opened stores.
func WithBusyTimeout(ms int) Option {
	return func(s *Store) { s.busyTimeoutMS = ms }
}

// NewStore opens/initializes a Store.
func NewStore(ctx context.Context, opts ...Option) (*Store, error) {
	s := &Store{
		table:         defaultTable,
		namespace:     meta.DefaultNamespace,
		ensureSchema:  true,
		busyTimeoutMS: 5000,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !tableName.MatchString(s.table) {
		return nil, fmt.Errorf("sqlitevec: invalid table name %q", s.table)
	}
	if s.db == nil {
		if s.dsn == "" {
			return nil, fmt.Errorf("sqlitevec: dsn required")
		}
		db, err := engine.Open(sqliteutil.EnsurePragmas(s.dsn, sqliteutil.WAL(), sqliteutil.BusyTimeout(s.busyTimeoutMS)))
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
		s.db = db
		s.openedLocally = true
	}
	if s.ensureSchema {
		if err := s.ensureSchemaDDL(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the underlying DB if Store opened it.
func (s *Store) Close() error {
	if s.openedLocally && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Namespace returns the store namespace.
func (s *Store) Namespace() string { return s.namespace }

// Add upserts entries in a single transaction.
func (s *Store) Add(ctx context.Context, entries ...record.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s(namespace, id, position, content, meta, embedding, embedding_model, vectorized_at)
VALUES(?,?,?,?,?,?,?,?)
ON CONFLICT(namespace, id) DO UPDATE SET
	position=excluded.position,
	content=excluded.content,
	meta=excluded.meta,
	embedding=excluded.embedding,
	embedding_model=excluded.embedding_model,
	vectorized_at=excluded.vectorized_at`, s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, entry := range entries {
		blob, err := vector.EncodeEmbedding(entry.Vector)
		if err != nil {
			return fmt.Errorf("sqlitevec: encode %s: %w", entry.ID, err)
		}
		metaJSON, err := encodeMeta(entry.Metadata)
		if err != nil {
			return err
		}
		vectorizedAt := entry.VectorizedAt
		if vectorizedAt.IsZero() {
			vectorizedAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, s.namespace, entry.ID, entry.Position, entry.Text, metaJSON, blob,
			meta.GetString(entry.Metadata, meta.ModelKey), vectorizedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("sqlitevec: upsert %s: %w", entry.ID, classify(err))
		}
	}
	return classify(tx.Commit())
}

// Delete removes entries by identifier.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE namespace = ? AND id = ?`, s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, s.namespace, id); err != nil {
			return fmt.Errorf("sqlitevec: delete %s: %w", id, classify(err))
		}
	}
	return classify(tx.Commit())
}

// GetAll returns every entry of the namespace in position order.
func (s *Store) GetAll(ctx context.Context) ([]record.Entry, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, position, content, meta, embedding, vectorized_at
FROM %s WHERE namespace = ? ORDER BY position, id`, s.table), s.namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []record.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// QueryNearest scans the namespace and returns the k closest entries.
func (s *Store) QueryNearest(ctx context.Context, vec []float32, k int) ([]vectordb.Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}
	entries, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]vectordb.Neighbor, 0, len(entries))
	for _, entry := range entries {
		out = append(out, vectordb.Neighbor{
			ID:       entry.ID,
			Text:     entry.Text,
			Metadata: entry.Metadata,
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

// Count returns the number of entries in the namespace.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE namespace = ?`, s.table), s.namespace).Scan(&n)
	return n, err
}

func (s *Store) ensureSchemaDDL(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			namespace        TEXT NOT NULL,
			id               TEXT NOT NULL,
			position         INTEGER NOT NULL,
			content          TEXT NOT NULL,
			meta             TEXT,
			embedding        BLOB,
			embedding_model  TEXT,
			vectorized_at    TEXT NOT NULL,
			PRIMARY KEY (namespace, id)
		);`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_position ON %s(namespace, position);`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func scanEntry(rows *sql.Rows) (record.Entry, error) {
	var entry record.Entry
	var metaJSON sql.NullString
	var blob []byte
	var vectorizedAt string
	if err := rows.Scan(&entry.ID, &entry.Position, &entry.Text, &metaJSON, &blob, &vectorizedAt); err != nil {
		return entry, err
	}
	var err error
	if entry.Metadata, err = decodeMeta(metaJSON.String); err != nil {
		return entry, fmt.Errorf("sqlitevec: meta %s: %w", entry.ID, err)
	}
	if len(blob) > 0 {
		if entry.Vector, err = vector.DecodeEmbedding(blob); err != nil {
			return entry, fmt.Errorf("sqlitevec: embedding %s: %w", entry.ID, err)
		}
	}
	if vectorizedAt != "" {
		if entry.VectorizedAt, err = time.Parse(time.RFC3339Nano, vectorizedAt); err != nil {
			return entry, fmt.Errorf("sqlitevec: vectorized_at %s: %w", entry.ID, err)
		}
	}
	return entry, nil
}

func encodeMeta(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("sqlitevec: encode meta: %w", err)
	}
	return string(data), nil
}

func decodeMeta(metaJSON string) (map[string]string, error) {
	out := map[string]string{}
	if metaJSON == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(metaJSON), &out); err != nil {
		return nil, err
	}
	return out, nil
}
