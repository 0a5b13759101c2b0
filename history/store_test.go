package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kdb/ingest"
)

func TestStore_RecordAndList(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", FileName)
	store, err := Open(ctx, "", path)
	require.NoError(t, err)
	defer store.Close()

	first := &ingest.Summary{
		Library:  "k2_standard",
		Total:    ingest.Counts{Files: 3, Committed: 1, Failed: 1, Unreadable: 1},
		Started:  time.Unix(1_700_000_000, 0),
		Duration: 1500 * time.Millisecond,
		Files: []ingest.FileResult{
			{Path: "/g/a.fna", Group: "viral", State: ingest.Committed},
			{Path: "/g/b.fna", Group: "viral", State: ingest.Failed, Err: errors.New("exit status 1")},
			{Path: "/g/c.fna", Group: "bacteria", State: ingest.Unreadable},
		},
	}
	runID, err := store.Record(ctx, first)
	require.NoError(t, err)
	assert.Len(t, runID, 36)

	second := &ingest.Summary{Library: "k2_standard", Started: time.Unix(1_700_000_100, 0), Interrupted: true}
	_, err = store.Record(ctx, second)
	require.NoError(t, err)
	_, err = store.Record(ctx, &ingest.Summary{Library: "k2_viral", Started: time.Unix(1_700_000_200, 0)})
	require.NoError(t, err)

	passes, err := store.List(ctx, "k2_standard", 10)
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.True(t, passes[0].Cancelled)
	assert.Equal(t, runID, passes[1].RunID)
	assert.Equal(t, first.Total, passes[1].Counts)
	assert.Equal(t, 1500*time.Millisecond, passes[1].Duration)
	assert.Equal(t, int64(1_700_000_000), passes[1].StartedAt.Unix())

	all, err := store.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	files, err := store.Files(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, []File{
		{Path: "/g/b.fna", Group: "viral", State: "failed", Error: "exit status 1"},
		{Path: "/g/c.fna", Group: "bacteria", State: "unreadable"},
	}, files)
}

func TestDetectDriver(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@host/db":        "postgres",
		"mysql://u:p@tcp(host:3306)/db": "mysql",
		"u:p@tcp(host:3306)/db":         "mysql",
		"/cache/kdb/history.db":         "sqlite",
		"file:/cache/kdb/history.db":    "sqlite",
	}
	for dsn, want := range cases {
		got, ok := DetectDriver(dsn)
		assert.True(t, ok, dsn)
		assert.Equal(t, want, got, dsn)
	}
	_, ok := DetectDriver("")
	assert.False(t, ok)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", dialectPostgres.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	assert.Equal(t, "a = ?", dialectMySQL.rebind("a = ?"))
}
