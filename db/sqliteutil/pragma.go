// Package sqliteutil adjusts SQLite DSNs for the modernc driver.
package sqliteutil

import (
	"strconv"
	"strings"
)

// Pragma is a connection pragma applied through the DSN `_pragma` parameter.
type Pragma struct {
	Name  string
	Value string
}

// WAL enables write-ahead logging so readers do not block the writer.
func WAL() Pragma { return Pragma{Name: "journal_mode", Value: "WAL"} }

// BusyTimeout makes locked connections retry for ms milliseconds.
func BusyTimeout(ms int) Pragma { return Pragma{Name: "busy_timeout", Value: strconv.Itoa(ms)} }

// QueryOnly rejects writes on the connection.
func QueryOnly() Pragma { return Pragma{Name: "query_only", Value: "1"} }

// EnsurePragmas appends pragmas the DSN does not already set.
// It is a no-op for in-memory databases; empty values are skipped.
func EnsurePragmas(dsn string, pragmas ...Pragma) string {
	if dsn == "" || isMemory(dsn) {
		return dsn
	}
	lower := strings.ToLower(dsn)
	for _, p := range pragmas {
		if p.Name == "" || p.Value == "" || (p.Name == "busy_timeout" && p.Value == "0") {
			continue
		}
		if strings.Contains(lower, "_pragma="+strings.ToLower(p.Name)) {
			continue
		}
		dsn = addPragma(dsn, p.Name+"("+p.Value+")")
	}
	return dsn
}

func isMemory(dsn string) bool {
	lower := strings.ToLower(dsn)
	return dsn == ":memory:" || strings.HasPrefix(lower, "file::memory:") || strings.Contains(lower, "mode=memory")
}

func addPragma(dsn, pragma string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=" + pragma
}
