package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kdb/genome"
	"github.com/viant/kdb/ingest"
	"github.com/viant/kdb/ledger"
)

type fakeRunner struct {
	mu    sync.Mutex
	lines []string
	fail  string
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line := name + " " + strings.Join(args, " ")
	f.lines = append(f.lines, line)
	if f.fail != "" && strings.Contains(line, f.fail) {
		return []byte("error"), errors.New("exit status 1")
	}
	return nil, nil
}

func (f *fakeRunner) matching(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, line := range f.lines {
		if strings.HasPrefix(line, prefix) {
			out = append(out, line)
		}
	}
	return out
}

func writeGenome(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestService(t *testing.T, runner *fakeRunner) (*Service, *Config) {
	t.Helper()
	cfg := &Config{
		CacheDir:    t.TempDir(),
		Threads:     2,
		MetricsFile: filepath.Join(t.TempDir(), "kdb.prom"),
	}
	svc, err := NewService(
		WithConfig(cfg),
		WithRunner(runner),
		WithLookPath(func(file string) (string, error) { return "/usr/bin/" + file, nil }),
	)
	require.NoError(t, err)
	return svc, cfg
}

func TestService_Ingest(t *testing.T) {
	runner := &fakeRunner{}
	svc, cfg := newTestService(t, runner)
	root := t.TempDir()
	writeGenome(t, filepath.Join(root, "a.fna"), ">a\nACGT\n")
	writeGenome(t, filepath.Join(root, "b.fna"), ">a\nACGT\n")
	writeGenome(t, filepath.Join(root, "c.fna"), ">c\nGGGG\n")

	ctx := context.Background()
	result, err := svc.Ingest(ctx, IngestRequest{DBType: "custom", Root: root})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.CacheDir, "k2_custom"), result.LibraryDir)
	assert.Equal(t, 2, result.Summary.Total.Committed)
	assert.Equal(t, 1, result.Summary.Total.Skipped)
	assert.Equal(t, 2, result.LedgerEntries)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, []string{
		"kraken2-build --db " + result.LibraryDir + " --add-to-library " + filepath.Join(root, "a.fna"),
		"kraken2-build --db " + result.LibraryDir + " --add-to-library " + filepath.Join(root, "c.fna"),
	}, runner.matching("kraken2-build"))

	prom, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `kdb_ledger_entries{library="k2_custom"} 2`)

	again, err := svc.Ingest(ctx, IngestRequest{DBType: "custom", Root: root})
	require.NoError(t, err)
	assert.Equal(t, 3, again.Summary.Total.Skipped)
	assert.Len(t, runner.matching("kraken2-build"), 2)

	passes, err := svc.History(ctx, HistoryRequest{DBType: "custom"})
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.Equal(t, "k2_custom", passes[0].Library)

	info, err := svc.Ledger(ctx, LedgerRequest{DBType: "custom", Entries: true})
	require.NoError(t, err)
	assert.Equal(t, 2, info.Info.Entries)
	assert.Len(t, info.Entries, 2)
}

func TestService_IngestFilters(t *testing.T) {
	runner := &fakeRunner{}
	svc, cfg := newTestService(t, runner)
	cfg.MinFileSize = 4
	cfg.IgnoreFile = filepath.Join(t.TempDir(), ".kdbignore")
	require.NoError(t, os.WriteFile(cfg.IgnoreFile, []byte("# drafts\ndraft_*\n"), 0o644))
	root := t.TempDir()
	writeGenome(t, filepath.Join(root, "a.fna"), ">a\nACGT\n")
	writeGenome(t, filepath.Join(root, "draft_b.fna"), ">b\nACGT\n")
	writeGenome(t, filepath.Join(root, "tiny.fna"), "x")

	var logged []string
	logf := func(format string, args ...any) { logged = append(logged, fmt.Sprintf(format, args...)) }
	result, err := svc.Ingest(context.Background(), IngestRequest{DBType: "custom", Root: root, Threads: 1, Logf: logf})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Total.Files)
	assert.Equal(t, []string{filepath.Join(root, "a.fna")}, result.Summary.ByState(ingest.Committed))
	assert.Contains(t, logged, "library add db="+result.LibraryDir+" path="+filepath.Join(root, "a.fna"))

	prom, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `library="k2_custom",state="committed"} 1`)
}

func TestService_IngestMissingIgnoreFile(t *testing.T) {
	svc, cfg := newTestService(t, &fakeRunner{})
	cfg.IgnoreFile = filepath.Join(t.TempDir(), "missing")
	_, err := svc.Ingest(context.Background(), IngestRequest{DBType: "custom", Root: t.TempDir()})
	assert.Error(t, err)
	_, err = os.Stat(ledger.Path(svc.LibraryDir("custom")))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestService_IngestFailuresRecorded(t *testing.T) {
	runner := &fakeRunner{fail: "bad.fna"}
	svc, _ := newTestService(t, runner)
	root := t.TempDir()
	writeGenome(t, filepath.Join(root, "bad.fna"), "x")
	writeGenome(t, filepath.Join(root, "good.fna"), "y")

	result, err := svc.Ingest(context.Background(), IngestRequest{DBType: "custom", Root: root})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Total.Failed)

	files, err := svc.HistoryFiles(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(root, "bad.fna"), files[0].Path)
	assert.Equal(t, "failed", files[0].State)
}

func TestService_IngestValidation(t *testing.T) {
	svc, cfg := newTestService(t, &fakeRunner{})
	_, err := svc.Ingest(context.Background(), IngestRequest{})
	assert.ErrorIs(t, err, ErrMissingLibrary)

	_, err = svc.Ingest(context.Background(), IngestRequest{DBType: "custom", Root: filepath.Join(cfg.CacheDir, "missing")})
	assert.ErrorIs(t, err, genome.ErrRootUnreadable)
	_, err = os.Stat(ledger.Path(svc.LibraryDir("custom")))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestService_IngestCorruptLedger(t *testing.T) {
	runner := &fakeRunner{}
	svc, _ := newTestService(t, runner)
	root := t.TempDir()
	writeGenome(t, filepath.Join(root, "a.fna"), "a")
	writeGenome(t, ledger.Path(svc.LibraryDir("custom")), "garbage\n")

	_, err := svc.Ingest(context.Background(), IngestRequest{DBType: "custom", Root: root})
	assert.ErrorIs(t, err, ledger.ErrCorrupt)
	assert.Empty(t, runner.lines)
}

func TestService_IngestInterrupted(t *testing.T) {
	svc, _ := newTestService(t, &fakeRunner{})
	root := t.TempDir()
	writeGenome(t, filepath.Join(root, "a.fna"), "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := svc.Ingest(ctx, IngestRequest{DBType: "custom", Root: root})
	assert.True(t, IsInterrupted(err))
	if result != nil {
		assert.Equal(t, 0, result.Summary.Total.Committed)
	}
}

func TestService_Build(t *testing.T) {
	runner := &fakeRunner{}
	svc, cfg := newTestService(t, runner)
	svc.config.Datasets = map[string][]string{"small": {"viral", "archaea"}}
	writeGenome(t, filepath.Join(cfg.CacheDir, "refseq", "viral", "GCF_1", "GCF_1_genomic.fna"), ">v\nACGT\n")

	result, err := svc.Build(context.Background(), BuildRequest{DBType: "small", SkipMaps: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Total.Committed)
	assert.Equal(t, []string{
		"ncbi-genome-download --section refseq --format fasta --assembly-level complete --retries 3 --parallel 2 viral",
		"ncbi-genome-download --section refseq --format fasta --assembly-level complete --retries 3 --parallel 2 archaea",
	}, runner.matching("ncbi-genome-download"))
	assert.Len(t, runner.matching("wget"), 1)
	assert.Equal(t, []string{"kraken2-build --db " + result.LibraryDir + " --build --threads 2"}, runner.matching("kraken2-build --db "+result.LibraryDir+" --build"))

	// force removes the ledger so the genome is committed again
	result, err = svc.Build(context.Background(), BuildRequest{DBType: "small", Force: true, SkipTaxonomy: true, SkipDownload: true, SkipIndex: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Total.Committed)
}

func TestService_BuildRequiresTools(t *testing.T) {
	svc, _ := newTestService(t, &fakeRunner{})
	svc.lookPath = func(file string) (string, error) { return "", errors.New("not found") }
	_, err := svc.Build(context.Background(), BuildRequest{DBType: "standard"})
	assert.Error(t, err)
}
