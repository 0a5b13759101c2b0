package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invocation struct {
	dir  string
	line string
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []invocation
	fail  string
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	f.calls = append(f.calls, invocation{dir: dir, line: line})
	if f.fail != "" && strings.HasPrefix(line, f.fail) {
		return []byte("connection refused"), errors.New("exit status 4")
	}
	return nil, nil
}

func (f *fakeRunner) lines() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.line)
	}
	sort.Strings(out)
	return out
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestCheck(t *testing.T) {
	tc := &Toolchain{LookPath: func(file string) (string, error) {
		if file == GenomeDownloader {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + file, nil
	}}
	err := tc.Check()
	assert.ErrorIs(t, err, ErrToolMissing)
	assert.Contains(t, err.Error(), GenomeDownloader)

	tc.LookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	assert.NoError(t, tc.Check())
}

func TestTaxonomyURLs(t *testing.T) {
	tc := &Toolchain{Server: "https://mirror"}
	assert.Equal(t, []string{
		"https://mirror/pub/taxonomy/accession2taxid/nucl_gb.accession2taxid.gz",
		"https://mirror/pub/taxonomy/accession2taxid/nucl_wgs.accession2taxid.gz",
		"https://mirror/pub/taxonomy/taxdump.tar.gz",
	}, tc.TaxonomyURLs(TaxonomyOptions{}))
	assert.Equal(t, []string{
		"https://mirror/pub/taxonomy/accession2taxid/prot.accession2taxid.gz",
		"https://mirror/pub/taxonomy/taxdump.tar.gz",
	}, tc.TaxonomyURLs(TaxonomyOptions{Protein: true}))
	assert.Equal(t, []string{"https://mirror/pub/taxonomy/taxdump.tar.gz"}, tc.TaxonomyURLs(TaxonomyOptions{SkipMaps: true}))
}

func TestSyncTaxonomy(t *testing.T) {
	cache := t.TempDir()
	dir := filepath.Join(cache, TaxonomyDir)
	touch(t, filepath.Join(dir, "taxdump.tar.gz"))
	touch(t, filepath.Join(dir, "nucl_gb.accession2taxid.gz"))
	touch(t, filepath.Join(dir, "nucl_wgs.accession2taxid.gz"))
	touch(t, filepath.Join(dir, "nucl_wgs.accession2taxid"))

	runner := &fakeRunner{}
	tc := &Toolchain{Runner: runner, Threads: 2, Server: "https://mirror"}
	require.NoError(t, tc.SyncTaxonomy(context.Background(), cache, TaxonomyOptions{}))
	assert.Equal(t, []string{
		"gunzip -k " + filepath.Join(dir, "nucl_gb.accession2taxid.gz"),
		"tar -k -xf taxdump.tar.gz",
		"wget -c -q https://mirror/pub/taxonomy/accession2taxid/nucl_gb.accession2taxid.gz",
		"wget -c -q https://mirror/pub/taxonomy/accession2taxid/nucl_wgs.accession2taxid.gz",
		"wget -c -q https://mirror/pub/taxonomy/taxdump.tar.gz",
	}, runner.lines())
	for _, c := range runner.calls {
		if strings.HasPrefix(c.line, "wget") || strings.HasPrefix(c.line, "tar") {
			assert.Equal(t, dir, c.dir)
		}
	}
}

func TestSyncTaxonomy_SkipsUnpackedTree(t *testing.T) {
	cache := t.TempDir()
	dir := filepath.Join(cache, TaxonomyDir)
	touch(t, filepath.Join(dir, "nodes.dmp"))
	touch(t, filepath.Join(dir, "names.dmp"))
	runner := &fakeRunner{}
	tc := &Toolchain{Runner: runner}
	require.NoError(t, tc.SyncTaxonomy(context.Background(), cache, TaxonomyOptions{SkipMaps: true}))
	assert.Equal(t, []string{"wget -c -q https://ftp.ncbi.nlm.nih.gov/pub/taxonomy/taxdump.tar.gz"}, runner.lines())
}

func TestSyncTaxonomy_DownloadFailure(t *testing.T) {
	runner := &fakeRunner{fail: "wget"}
	tc := &Toolchain{Runner: runner}
	err := tc.SyncTaxonomy(context.Background(), t.TempDir(), TaxonomyOptions{SkipMaps: true})
	require.Error(t, err)
	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, "wget", runErr.Command)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDownloadGenomes(t *testing.T) {
	cache := t.TempDir()
	group := filepath.Join(cache, GenomeDir, "viral")
	touch(t, filepath.Join(group, "GCF_1", "GCF_1_genomic.fna.gz"))
	touch(t, filepath.Join(group, "GCF_2", "GCF_2_genomic.fna.gz"))
	touch(t, filepath.Join(group, "GCF_2", "GCF_2_genomic.fna"))

	runner := &fakeRunner{}
	tc := &Toolchain{Runner: runner, Threads: 8}
	require.NoError(t, tc.DownloadGenomes(context.Background(), cache, "viral"))
	require.Len(t, runner.calls, 2)
	assert.Equal(t, invocation{
		dir:  cache,
		line: "ncbi-genome-download --section refseq --format fasta --assembly-level complete --retries 3 --parallel 8 viral",
	}, runner.calls[0])
	assert.Equal(t, "gunzip -k "+filepath.Join(group, "GCF_1", "GCF_1_genomic.fna.gz"), runner.calls[1].line)
}

func TestBuildIndex(t *testing.T) {
	cache := t.TempDir()
	lib := filepath.Join(cache, "k2_standard")
	runner := &fakeRunner{}
	tc := &Toolchain{Runner: runner, Threads: 4}
	require.NoError(t, tc.BuildIndex(context.Background(), cache, lib))

	target, err := os.Readlink(filepath.Join(lib, TaxonomyDir))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, TaxonomyDir), target)
	assert.Equal(t, []string{"kraken2-build --db " + lib + " --build --threads 4"}, runner.lines())

	// an existing link is kept
	require.NoError(t, tc.BuildIndex(context.Background(), cache, lib))
}
