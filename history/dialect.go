package history

import (
	"strconv"
	"strings"
)

type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectMySQL    dialect = "mysql"
	dialectPostgres dialect = "postgres"
)

func resolveDialect(driver string) dialect {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql", "mariadb":
		return dialectMySQL
	case "postgres", "postgresql", "pq":
		return dialectPostgres
	default:
		return dialectSQLite
	}
}

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
	case strings.HasPrefix(lower, "file:"), lower == ":memory:", strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".db"):
		return "sqlite", true
	case strings.Contains(lower, "@tcp("), strings.Contains(lower, "@unix("):
		return "mysql", true
	}
	return "", false
}

// rebind rewrites ? placeholders into $n for postgres.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (d dialect) schema() []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kdb_pass (
			run_id VARCHAR(64) NOT NULL PRIMARY KEY,
			library VARCHAR(255) NOT NULL,
			started_at BIGINT NOT NULL,
			duration_ms BIGINT NOT NULL,
			files INTEGER NOT NULL,
			committed INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			unreadable INTEGER NOT NULL,
			interrupted INTEGER NOT NULL,
			cancelled INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS kdb_pass_file (
			run_id VARCHAR(64) NOT NULL,
			seq INTEGER NOT NULL,
			path TEXT NOT NULL,
			grp VARCHAR(255) NOT NULL,
			state VARCHAR(32) NOT NULL,
			error TEXT,
			PRIMARY KEY(run_id, seq)
		)`,
	}
	if d != dialectMySQL {
		stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_kdb_pass_library ON kdb_pass(library, started_at)`)
	}
	return stmts
}
