// Package sqliteutil builds modernc sqlite DSNs.
package sqliteutil

import (
	"fmt"
	"strings"
)

// Options are the connection pragmas applied to a file database.
type Options struct {
	WAL           bool
	BusyTimeoutMS int
	// Synchronous is the synchronous pragma level, e.g. NORMAL; empty keeps the default.
	Synchronous string
}

// DefaultOptions suit a single writer with occasional readers.
var DefaultOptions = Options{WAL: true, BusyTimeoutMS: 5000, Synchronous: "NORMAL"}

// DSN returns a DSN for location, which may be a plain path, a file: URI or :memory:.
func DSN(location string, opts Options) string {
	if location == "" {
		return location
	}
	if location != ":memory:" && !strings.HasPrefix(location, "file:") {
		location = "file:" + location
	}
	return EnsurePragmas(location, opts)
}

// EnsurePragmas appends pragmas missing from the DSN.
// It is a no-op for in-memory databases.
func EnsurePragmas(dsn string, opts Options) string {
	if dsn == "" {
		return dsn
	}
	lower := strings.ToLower(dsn)
	if dsn == ":memory:" || strings.HasPrefix(lower, "file::memory:") {
		return dsn
	}
	if opts.WAL && !strings.Contains(lower, "_pragma=journal_mode") {
		dsn = addPragma(dsn, "journal_mode(WAL)")
	}
	if opts.BusyTimeoutMS > 0 && !strings.Contains(lower, "_pragma=busy_timeout") {
		dsn = addPragma(dsn, fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeoutMS))
	}
	if opts.Synchronous != "" && !strings.Contains(lower, "_pragma=synchronous") {
		dsn = addPragma(dsn, fmt.Sprintf("synchronous(%s)", opts.Synchronous))
	}
	return dsn
}

func addPragma(dsn, pragma string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=" + pragma
}
