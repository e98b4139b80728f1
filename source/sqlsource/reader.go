// Package sqlsource reads patients from a relational database and renders
// them as ordered natural language descriptions.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/viant/sqlx/io/config"
	"github.com/viant/sqlx/metadata/info"
)

const defaultTable = "Patients"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){0,2}$`)

// Reader implements source.Reader over the patients table.
type Reader struct {
	db    *sql.DB
	table string
	limit int
	now   func() time.Time

	dialectOnce sync.Once
	dialect     *info.Dialect
}

// Option configures the Reader.
type Option func(*Reader)

// WithTable sets the patients table (default: Patients).
func WithTable(table string) Option {
	return func(r *Reader) { r.table = table }
}

// WithLimit caps the number of patients read; zero reads all.
func WithLimit(limit int) Option {
	return func(r *Reader) { r.limit = limit }
}

// WithClock sets the clock used for ages.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) { r.now = now }
}

// New creates a Reader.
func New(db *sql.DB, opts ...Option) (*Reader, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlsource: db is required")
	}
	r := &Reader{db: db, table: defaultTable, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if !tableName.MatchString(r.table) {
		return nil, fmt.Errorf("sqlsource: invalid table name %q", r.table)
	}
	return r, nil
}

// ReadAll returns one description per patient ordered by full name.
func (r *Reader) ReadAll(ctx context.Context) ([]string, error) {
	patients, err := r.Patients(ctx)
	if err != nil {
		return nil, err
	}
	now := r.now()
	out := make([]string, len(patients))
	for i := range patients {
		out[i] = patients[i].Describe(now)
	}
	return out, nil
}

// Patients returns patients ordered by full name, at most the configured limit.
// Every supported driver (sqlite, mysql, postgres, bigquery) accepts a trailing LIMIT.
func (r *Reader) Patients(ctx context.Context) ([]Patient, error) {
	return r.query(ctx, r.listSQL())
}

func (r *Reader) listSQL() string {
	query := r.selectSQL("")
	if r.limit > 0 {
		query += " LIMIT " + strconv.Itoa(r.limit)
	}
	return query
}

// SearchByName returns patients whose full name contains name.
func (r *Reader) SearchByName(ctx context.Context, name string) ([]Patient, error) {
	query := r.placeholders(ctx, r.selectSQL("WHERE FullName LIKE ?"))
	return r.query(ctx, query, "%"+name+"%")
}

// Count returns the number of patients.
func (r *Reader) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlsource: count: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (r *Reader) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Reader) selectSQL(where string) string {
	sb := strings.Builder{}
	sb.WriteString("SELECT FullName, IdentificationNumber, BirthDate, Phone, Email FROM ")
	sb.WriteString(r.table)
	if where != "" {
		sb.WriteString(" ")
		sb.WriteString(where)
	}
	sb.WriteString(" ORDER BY FullName")
	return sb.String()
}

func (r *Reader) query(ctx context.Context, query string, args ...any) ([]Patient, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlsource: query: %w", err)
	}
	defer rows.Close()
	var out []Patient
	for rows.Next() {
		var name, id, birth, phone, email any
		if err := rows.Scan(&name, &id, &birth, &phone, &email); err != nil {
			return nil, fmt.Errorf("sqlsource: scan: %w", err)
		}
		p := Patient{FullName: toText(name), IdentificationNumber: toText(id), Phone: toText(phone), Email: toText(email)}
		if p.BirthDate, err = toDate(birth); err != nil {
			return nil, fmt.Errorf("sqlsource: patient %q: %w", p.FullName, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlsource: rows: %w", err)
	}
	return out, nil
}

func (r *Reader) placeholders(ctx context.Context, query string) string {
	r.dialectOnce.Do(func() {
		if dialect, err := config.Dialect(ctx, r.db); err == nil {
			r.dialect = dialect
		}
	})
	if r.dialect == nil {
		return query
	}
	return r.dialect.EnsurePlaceholders(query)
}
