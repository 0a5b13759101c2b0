// Package history keeps a queryable record of ingestion passes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/viant/kdb/db/sqliteutil"
	"github.com/viant/kdb/ingest"
	_ "modernc.org/sqlite" // pure Go sqlite driver
)

// FileName is the default sqlite history database name inside the cache directory.
const FileName = "history.db"

// Pass is one recorded ingestion pass.
type Pass struct {
	RunID     string
	Library   string
	StartedAt time.Time
	Duration  time.Duration
	Counts    ingest.Counts
	Cancelled bool
}

// File is a recorded non-success outcome of a pass.
type File struct {
	Path  string
	Group string
	State string
	Error string
}

// Store persists pass history.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the history database and ensures its schema.
// An empty driver is inferred from the DSN; plain paths are opened with sqlite.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver == "" {
		if detected, ok := DetectDriver(dsn); ok {
			driver = detected
		} else {
			driver = "sqlite"
		}
	}
	d := resolveDialect(driver)
	var err error
	switch d {
	case dialectSQLite:
		driver = "sqlite"
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	case dialectMySQL:
		driver = "mysql"
		dsn = strings.TrimPrefix(dsn, "mysql://")
	case dialectPostgres:
		driver = "postgres"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", driver, err)
	}
	if d == dialectSQLite {
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db, dialect: d}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(dsn string) (string, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return "", fmt.Errorf("history: create directory: %w", err)
		}
	}
	return sqliteutil.DSN(dsn, sqliteutil.DefaultOptions), nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history: ensure schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a pass summary and its unsuccessful files, returning the new run id.
func (s *Store) Record(ctx context.Context, summary *ingest.Summary) (string, error) {
	runID := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()
	c := summary.Total
	cancelled := 0
	if summary.Interrupted {
		cancelled = 1
	}
	_, err = tx.ExecContext(ctx, s.dialect.rebind(`INSERT INTO kdb_pass(run_id, library, started_at, duration_ms, files, committed, skipped, failed, unreadable, interrupted, cancelled)
VALUES(?,?,?,?,?,?,?,?,?,?,?)`),
		runID, summary.Library, summary.Started.Unix(), summary.Duration.Milliseconds(),
		c.Files, c.Committed, c.Skipped, c.Failed, c.Unreadable, c.Interrupted, cancelled)
	if err != nil {
		return "", fmt.Errorf("history: insert pass: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(`INSERT INTO kdb_pass_file(run_id, seq, path, grp, state, error) VALUES(?,?,?,?,?,?)`))
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	seq := 0
	for _, f := range summary.Files {
		if f.State != ingest.Failed && f.State != ingest.Unreadable {
			continue
		}
		var msg any
		if f.Err != nil {
			msg = f.Err.Error()
		}
		seq++
		if _, err := stmt.ExecContext(ctx, runID, seq, f.Path, f.Group, f.State.String(), msg); err != nil {
			return "", fmt.Errorf("history: insert file: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

// List returns the most recent passes, newest first. An empty library lists all.
func (s *Store) List(ctx context.Context, library string, limit int) ([]Pass, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT run_id, library, started_at, duration_ms, files, committed, skipped, failed, unreadable, interrupted, cancelled FROM kdb_pass`
	var args []any
	if library != "" {
		query += ` WHERE library = ?`
		args = append(args, library)
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC, run_id LIMIT %d`, limit)
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Pass
	for rows.Next() {
		var p Pass
		var started, durationMS int64
		var cancelled int
		if err := rows.Scan(&p.RunID, &p.Library, &started, &durationMS, &p.Counts.Files, &p.Counts.Committed,
			&p.Counts.Skipped, &p.Counts.Failed, &p.Counts.Unreadable, &p.Counts.Interrupted, &cancelled); err != nil {
			return nil, err
		}
		p.StartedAt = time.Unix(started, 0)
		p.Duration = time.Duration(durationMS) * time.Millisecond
		p.Cancelled = cancelled != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// Files returns the unsuccessful files of a run in enumeration order.
func (s *Store) Files(ctx context.Context, runID string) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`SELECT path, grp, state, error FROM kdb_pass_file WHERE run_id = ? ORDER BY seq`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []File
	for rows.Next() {
		var f File
		var msg sql.NullString
		if err := rows.Scan(&f.Path, &f.Group, &f.State, &msg); err != nil {
			return nil, err
		}
		f.Error = msg.String
		out = append(out, f)
	}
	return out, rows.Err()
}
