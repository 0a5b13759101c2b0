package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/kdb/digest"
	"github.com/viant/kdb/genome"
	"github.com/viant/kdb/ingest"
	"github.com/viant/kdb/ledger"
	"github.com/viant/kdb/library"
	"github.com/viant/kdb/matching"
	"github.com/viant/kdb/matching/option"
	"github.com/viant/kdb/metrics"
	"github.com/viant/kdb/sidecar"
	"github.com/viant/kdb/toolchain"
)

// Ingest adds every not yet committed genome file to the library and records
// the pass. Errors from ingest.Run, including ingest.ErrInterrupted, are
// returned together with the result.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	logf := logfOrNil(req.Logf)
	libraryDir, err := s.resolveLibrary(req.DBType, req.LibraryDir)
	if err != nil {
		return nil, err
	}
	hasher, err := digest.New(s.config.Algorithm)
	if err != nil {
		return nil, err
	}
	source := s.source(req)
	if source.Root != "" {
		// checked before the ledger is created
		if info, err := os.Stat(source.Root); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", genome.ErrRootUnreadable, source.Root)
		}
	}

	matcher, err := s.matcher(ctx)
	if err != nil {
		return nil, err
	}

	ledgerPath := ledger.Path(libraryDir)
	l, err := ledger.Open(ledgerPath, hasher.Algorithm(),
		ledger.WithLock(s.config.LockTimeoutSeconds > 0, s.config.lockTimeout()),
		ledger.WithLogf(logf))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := l.Close(); cerr != nil {
			logf("ledger close failed path=%s err=%v", ledgerPath, cerr)
		}
	}()

	name := filepath.Base(libraryDir)
	var recorder *metrics.Recorder
	var observer ingest.Observer
	if s.config.MetricsFile != "" {
		recorder = metrics.New(name)
		observer = recorder
	}
	summary, runErr := ingest.Run(ctx, &ingest.Request{
		Library:    name,
		Source:     source,
		Enumerator: genome.New(matcher),
		Digests:    sidecar.New(hasher, sidecar.WithLogf(logf)),
		Ledger:     l,
		Committer: &library.Kraken2{
			Binary: s.config.Kraken2,
			DB:     libraryDir,
			Runner: s.runner,
			Logf:   logf,
		},
		Threads:   s.threads(req.Threads),
		BatchSize: s.batchSize(req.BatchSize),
		Observer:  observer,
		Progress:  req.Progress,
		Logf:      logf,
	})
	if summary == nil {
		return nil, runErr
	}
	result := &IngestResult{LibraryDir: libraryDir, LedgerPath: ledgerPath, Summary: summary, LedgerEntries: l.Len()}

	// bookkeeping still runs on an interrupted pass
	bookkeeping := context.WithoutCancel(ctx)
	if recorder != nil {
		recorder.Finish(summary, result.LedgerEntries)
		if err := recorder.WriteFile(s.config.MetricsFile); err != nil {
			logf("metrics write failed path=%s err=%v", s.config.MetricsFile, err)
		}
	}
	store, err := s.openHistory(bookkeeping)
	if err != nil {
		logf("history unavailable err=%v", err)
	} else if store != nil {
		defer store.Close()
		if result.RunID, err = store.Record(bookkeeping, summary); err != nil {
			logf("history record failed err=%v", err)
		}
	}
	return result, runErr
}

func (s *Service) source(req IngestRequest) genome.Source {
	if req.Root != "" {
		return genome.Source{Root: req.Root}
	}
	groups := req.Groups
	if len(groups) == 0 {
		groups = genome.Groups(req.DBType, s.config.Datasets)
	}
	return genome.Source{GenomeDir: filepath.Join(s.config.CacheDir, toolchain.GenomeDir), Groups: groups}
}

func (s *Service) matcher(ctx context.Context) (*matching.Manager, error) {
	var opts []option.Option
	if len(s.config.Include) > 0 {
		opts = append(opts, option.WithInclusionPatterns(s.config.Include...))
	}
	if len(s.config.Exclude) > 0 {
		opts = append(opts, option.WithExclusionPatterns(s.config.Exclude...))
	}
	if s.config.MinFileSize > 0 {
		opts = append(opts, option.WithMinFileSize(s.config.MinFileSize))
	}
	if s.config.IgnoreFile != "" {
		data, err := afs.New().DownloadWithURL(ctx, url.ToFileURL(s.config.IgnoreFile))
		if err != nil {
			return nil, fmt.Errorf("service: read ignore file: %w", err)
		}
		opts = append(opts, option.WithIgnoreFile(bytes.NewReader(data)))
	}
	return matching.New(opts...), nil
}

func (s *Service) batchSize(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.config.BatchSize
}

// IsInterrupted reports whether err marks a cancelled pass.
func IsInterrupted(err error) bool {
	return errors.Is(err, ingest.ErrInterrupted)
}
