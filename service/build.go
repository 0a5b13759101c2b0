package service

import (
	"context"
	"fmt"
	"os"

	"github.com/viant/kdb/genome"
	"github.com/viant/kdb/toolchain"
)

// Build runs the full pipeline: taxonomy sync, genome download per group,
// incremental ingestion, then the index build. The index is only built after a
// complete pass.
func (s *Service) Build(ctx context.Context, req BuildRequest) (*IngestResult, error) {
	logf := logfOrNil(req.Logf)
	libraryDir, err := s.resolveLibrary(req.DBType, "")
	if err != nil {
		return nil, err
	}
	tc := s.toolchain(req.Threads, logf)
	if err := tc.Check(); err != nil {
		return nil, err
	}
	if req.Force {
		logf("build force library=%s", libraryDir)
		if err := os.RemoveAll(libraryDir); err != nil {
			return nil, fmt.Errorf("service: remove library: %w", err)
		}
	}
	if !req.SkipTaxonomy {
		if err := tc.SyncTaxonomy(ctx, s.config.CacheDir, toolchain.TaxonomyOptions{SkipMaps: req.SkipMaps, Protein: req.Protein}); err != nil {
			return nil, err
		}
	}
	groups := genome.Groups(req.DBType, s.config.Datasets)
	if !req.SkipDownload {
		for _, group := range groups {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := tc.DownloadGenomes(ctx, s.config.CacheDir, group); err != nil {
				return nil, err
			}
		}
	}
	result, err := s.Ingest(ctx, IngestRequest{
		DBType:   req.DBType,
		Groups:   groups,
		Threads:  req.Threads,
		Logf:     req.Logf,
		Progress: req.Progress,
	})
	if err != nil {
		return result, err
	}
	if req.SkipIndex {
		return result, nil
	}
	if err := tc.BuildIndex(ctx, s.config.CacheDir, libraryDir); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Service) toolchain(threads int, logf func(format string, args ...any)) *toolchain.Toolchain {
	return &toolchain.Toolchain{
		Runner:   s.runner,
		Threads:  s.threads(threads),
		Server:   s.config.NCBIServer,
		Kraken2:  s.config.Kraken2,
		LookPath: s.lookPath,
		Logf:     logf,
	}
}
