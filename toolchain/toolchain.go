// Package toolchain wraps the external steps around ingestion: taxonomy sync,
// genome download and the final index build.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/kdb/library"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultServer is the NCBI download host.
	DefaultServer = "https://ftp.ncbi.nlm.nih.gov"
	// GenomeDownloader is the refseq download tool.
	GenomeDownloader = "ncbi-genome-download"
	// TaxonomyDir is the taxonomy directory name inside the cache and the library.
	TaxonomyDir = "taxonomy"
	// GenomeDir is the directory the downloader writes into, relative to the cache.
	GenomeDir = "refseq"

	downloadParallelism = 4
)

// ErrToolMissing indicates a required program is not on PATH.
var ErrToolMissing = errors.New("toolchain: required program not found")

// TaxonomyOptions selects which taxonomy files are downloaded.
type TaxonomyOptions struct {
	// SkipMaps downloads only the taxonomy tree.
	SkipMaps bool
	// Protein downloads the protein accession map instead of the nucleotide maps.
	Protein bool
}

// RunError describes a failed external program.
type RunError struct {
	Command string
	Args    []string
	Output  string
	Err     error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Command, strings.Join(e.Args, " "), e.Err)
	output := strings.TrimSpace(e.Output)
	if i := strings.LastIndexByte(output, '\n'); i >= 0 {
		output = output[i+1:]
	}
	if output != "" {
		msg += ": " + output
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Toolchain runs external programs through a library.Runner.
type Toolchain struct {
	Runner   library.Runner
	Threads  int
	Server   string
	Kraken2  string
	LookPath func(file string) (string, error)
	Logf     func(format string, args ...any)
	fs       afs.Service
}

func (t *Toolchain) logf(format string, args ...any) {
	if t.Logf != nil {
		t.Logf(format, args...)
	}
}

func (t *Toolchain) threads() int {
	if t.Threads < 1 {
		return 1
	}
	return t.Threads
}

func (t *Toolchain) kraken2() string {
	if t.Kraken2 == "" {
		return library.DefaultBinary
	}
	return t.Kraken2
}

func (t *Toolchain) service() afs.Service {
	if t.fs == nil {
		t.fs = afs.New()
	}
	return t.fs
}

func (t *Toolchain) run(ctx context.Context, dir, name string, args ...string) error {
	t.logf("toolchain run dir=%s cmd=%s %s", dir, name, strings.Join(args, " "))
	runner := t.Runner
	if runner == nil {
		runner = library.ExecRunner{}
	}
	output, err := runner.Run(ctx, dir, name, args...)
	if err != nil {
		return &RunError{Command: name, Args: args, Output: string(output), Err: err}
	}
	return nil
}

// Check verifies the add-to-library and download programs are installed.
func (t *Toolchain) Check() error {
	lookPath := t.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	var missing []string
	for _, name := range []string{t.kraken2(), GenomeDownloader} {
		if _, err := lookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrToolMissing, strings.Join(missing, ", "))
	}
	return nil
}

// TaxonomyURLs returns the files SyncTaxonomy downloads.
func (t *Toolchain) TaxonomyURLs(opts TaxonomyOptions) []string {
	server := t.Server
	if server == "" {
		server = DefaultServer
	}
	var urls []string
	switch {
	case opts.SkipMaps:
	case opts.Protein:
		urls = append(urls, server+"/pub/taxonomy/accession2taxid/prot.accession2taxid.gz")
	default:
		urls = append(urls,
			server+"/pub/taxonomy/accession2taxid/nucl_gb.accession2taxid.gz",
			server+"/pub/taxonomy/accession2taxid/nucl_wgs.accession2taxid.gz",
		)
	}
	return append(urls, server+"/pub/taxonomy/taxdump.tar.gz")
}

// SyncTaxonomy downloads and unpacks taxonomy data into <cacheDir>/taxonomy.
// Partial downloads resume; already unpacked files are kept.
func (t *Toolchain) SyncTaxonomy(ctx context.Context, cacheDir string, opts TaxonomyOptions) error {
	dir := filepath.Join(cacheDir, TaxonomyDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("toolchain: create taxonomy dir: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadParallelism)
	for _, u := range t.TaxonomyURLs(opts) {
		u := u
		g.Go(func() error {
			return t.run(gctx, dir, "wget", "-c", "-q", u)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("toolchain: download taxonomy: %w", err)
	}
	if !exists(filepath.Join(dir, "nodes.dmp")) || !exists(filepath.Join(dir, "names.dmp")) {
		t.logf("toolchain untar taxonomy dir=%s", dir)
		if err := t.run(ctx, dir, "tar", "-k", "-xf", "taxdump.tar.gz"); err != nil {
			return fmt.Errorf("toolchain: unpack taxonomy: %w", err)
		}
	}
	return t.gunzipAll(ctx, dir, []string{"taxdump.tar.gz"})
}

// DownloadGenomes fetches complete refseq assemblies of one organism group into
// <cacheDir>/refseq/<group> and decompresses them next to the archives.
func (t *Toolchain) DownloadGenomes(ctx context.Context, cacheDir, group string) error {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}
	t.logf("toolchain download group=%s", group)
	err := t.run(ctx, cacheDir, GenomeDownloader,
		"--section", "refseq",
		"--format", "fasta",
		"--assembly-level", "complete",
		"--retries", "3",
		"--parallel", strconv.Itoa(t.threads()),
		group)
	if err != nil {
		return fmt.Errorf("toolchain: download %s: %w", group, err)
	}
	return t.gunzipAll(ctx, filepath.Join(cacheDir, GenomeDir, group), nil)
}

// BuildIndex links the taxonomy into the library and runs the index build.
func (t *Toolchain) BuildIndex(ctx context.Context, cacheDir, libraryDir string) error {
	link := filepath.Join(libraryDir, TaxonomyDir)
	if _, err := os.Lstat(link); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(libraryDir, 0o755); err != nil {
			return err
		}
		if err := os.Symlink(filepath.Join(cacheDir, TaxonomyDir), link); err != nil {
			return fmt.Errorf("toolchain: link taxonomy: %w", err)
		}
	}
	err := t.run(ctx, cacheDir, t.kraken2(), "--db", libraryDir, "--build", "--threads", strconv.Itoa(t.threads()))
	if err != nil {
		return fmt.Errorf("toolchain: build index: %w", err)
	}
	return nil
}

// gunzipAll decompresses every .gz under dir whose uncompressed copy is missing.
func (t *Toolchain) gunzipAll(ctx context.Context, dir string, skip []string) error {
	archives, err := t.findArchives(ctx, url.ToFileURL(dir))
	if err != nil {
		return fmt.Errorf("toolchain: list %s: %w", dir, err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.threads())
	for _, archive := range archives {
		archive := archive
		if slices.Contains(skip, filepath.Base(archive)) || exists(strings.TrimSuffix(archive, ".gz")) {
			continue
		}
		g.Go(func() error {
			return t.run(gctx, filepath.Dir(archive), "gunzip", "-k", archive)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("toolchain: decompress: %w", err)
	}
	return nil
}

func (t *Toolchain) findArchives(ctx context.Context, location string) ([]string, error) {
	ok, err := t.service().Exists(ctx, location)
	if err != nil || !ok {
		return nil, err
	}
	objects, err := t.service().List(ctx, location)
	if err != nil {
		return nil, err
	}
	var result []string
	base := url.Path(location)
	for _, object := range objects {
		objectPath := url.Path(object.URL())
		if object.IsDir() {
			if url.Equals(objectPath, base) {
				continue
			}
			sub, err := t.findArchives(ctx, url.Join(location, object.Name()))
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
			continue
		}
		if strings.HasSuffix(object.Name(), ".gz") {
			result = append(result, objectPath)
		}
	}
	return result, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
