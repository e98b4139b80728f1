package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/viant/medvec/db/sqliteutil"
	"github.com/viant/sqlite-vec/engine"
)

const busyTimeoutMS = 5000

// DetectDriver infers the database/sql driver name from a DSN.
func DetectDriver(dsn string) (string, bool) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", false
	}
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres", true
	case strings.HasPrefix(lower, "mysql://"):
		return "mysql", true
	case strings.HasPrefix(lower, "bigquery://"), strings.HasPrefix(lower, "bigquery:"), strings.HasPrefix(lower, "bq://"):
		return "bigquery", true
	case strings.HasPrefix(lower, "file:"), lower == ":memory:", strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".db"):
		return "sqlite", true
	case strings.Contains(lower, "@tcp("), strings.Contains(lower, "@unix("):
		return "mysql", true
	}
	return "", false
}

// Open opens and pings a source database; an empty driver is detected from the DSN.
// Drivers other than sqlite must be registered by the caller.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver == "" {
		detected, ok := DetectDriver(dsn)
		if !ok {
			return nil, fmt.Errorf("sqlsource: unable to detect driver from dsn")
		}
		driver = detected
	}
	var db *sql.DB
	var err error
	if driver == "sqlite" {
		db, err = engine.Open(sqliteutil.EnsurePragmas(dsn, sqliteutil.BusyTimeout(busyTimeoutMS), sqliteutil.QueryOnly()))
	} else {
		db, err = sql.Open(driver, strings.TrimPrefix(dsn, "mysql://"))
	}
	if err != nil {
		return nil, fmt.Errorf("sqlsource: open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlsource: ping %s: %w", driver, err)
	}
	return db, nil
}
