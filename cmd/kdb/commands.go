package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/viant/kdb/digest"
	"github.com/viant/kdb/service"
)

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func isUsage(err error) bool {
	var u *usageError
	return errors.As(err, &u)
}

type globalOptions struct {
	configPath string
	cacheDir   string
	threads    int
	algorithm  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "kdb",
		Short:         "Build and incrementally extend Kraken2 k-mer databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		_ = cmd.Usage()
		return &usageError{err: err}
	})
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config yaml (default ~/.config/kdb/config.yaml)")
	flags.StringVar(&opts.cacheDir, "cache-dir", "", "cache directory (default per platform)")
	flags.IntVar(&opts.threads, "threads", 0, "worker threads (default number of CPUs)")
	flags.StringVar(&opts.algorithm, "algorithm", "", "digest algorithm: highway256|sha256")

	root.AddCommand(newBuildCmd(opts), newIngestCmd(opts), newHistoryCmd(opts), newLedgerCmd(opts))
	return root
}

func (o *globalOptions) service() (*service.Service, error) {
	cfg, err := service.LoadConfig(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.cacheDir != "" {
		cfg.CacheDir = o.cacheDir
	}
	if o.threads > 0 {
		cfg.Threads = o.threads
	}
	if o.algorithm != "" {
		if !digest.Supported(o.algorithm) {
			return nil, &usageError{err: fmt.Errorf("unsupported algorithm %q", o.algorithm)}
		}
		cfg.Algorithm = o.algorithm
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, err
	}
	return service.NewService(service.WithConfig(cfg))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newBuildCmd(opts *globalOptions) *cobra.Command {
	req := service.BuildRequest{}
	var progress bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Download taxonomy and genomes, ingest new files and build the index",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			log.Printf("building database type=%s cache=%s", req.DBType, svc.Config().CacheDir)
			req.Logf = log.Printf
			req.Progress = newProgressPrinter(progress)
			result, err := svc.Build(ctx, req)
			if result != nil {
				printSummary(cmd.OutOrStdout(), result)
			}
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.DBType, "db-type", "standard", "database type to build")
	flags.BoolVar(&req.Force, "force", false, "remove the library and its ledger before building")
	flags.BoolVar(&req.SkipMaps, "skip-maps", false, "skip accession to taxon map downloads")
	flags.BoolVar(&req.Protein, "protein", false, "download the protein accession map")
	flags.BoolVar(&req.SkipTaxonomy, "skip-taxonomy", false, "skip taxonomy sync")
	flags.BoolVar(&req.SkipDownload, "skip-download", false, "skip genome downloads")
	flags.BoolVar(&req.SkipIndex, "skip-index", false, "skip the final index build")
	flags.BoolVar(&progress, "progress", false, "show ingestion progress")
	return cmd
}

func newIngestCmd(opts *globalOptions) *cobra.Command {
	req := service.IngestRequest{}
	var progress bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Add genome files not yet in the library",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.DBType == "" && req.LibraryDir == "" {
				return &usageError{err: service.ErrMissingLibrary}
			}
			svc, err := opts.service()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			req.Logf = log.Printf
			req.Progress = newProgressPrinter(progress)
			result, err := svc.Ingest(ctx, req)
			if result != nil {
				printSummary(cmd.OutOrStdout(), result)
			}
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.DBType, "db-type", "", "database type; library is <cache>/k2_<db-type>")
	flags.StringVar(&req.LibraryDir, "library", "", "library directory (overrides --db-type)")
	flags.StringVar(&req.Root, "root", "", "explicit genome directory instead of downloaded groups")
	flags.StringSliceVar(&req.Groups, "groups", nil, "organism groups (comma separated)")
	flags.IntVar(&req.BatchSize, "batch", 0, "files per add-to-library call")
	flags.BoolVar(&progress, "progress", false, "show ingestion progress")
	return cmd
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	req := service.HistoryRequest{}
	var runID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded ingestion passes",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service()
			if err != nil {
				return err
			}
			ctx := context.Background()
			out := cmd.OutOrStdout()
			if runID != "" {
				files, err := svc.HistoryFiles(ctx, runID)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", f.State, f.Group, f.Path, f.Error)
				}
				return nil
			}
			passes, err := svc.History(ctx, req)
			if err != nil {
				return err
			}
			printHistory(out, passes)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.DBType, "db-type", "", "filter by database type")
	flags.IntVar(&req.Limit, "limit", 20, "maximum passes to list")
	flags.StringVar(&runID, "run", "", "list failed files of one run")
	return cmd
}

func newLedgerCmd(opts *globalOptions) *cobra.Command {
	req := service.LedgerRequest{}
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show the committed digest ledger of a library",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.DBType == "" && req.LibraryDir == "" {
				return &usageError{err: service.ErrMissingLibrary}
			}
			svc, err := opts.service()
			if err != nil {
				return err
			}
			result, err := svc.Ledger(context.Background(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "path=%s version=%d algorithm=%s entries=%d\n",
				result.Info.Path, result.Info.Version, result.Info.Algorithm, result.Info.Entries)
			if result.Info.TornTail {
				fmt.Fprintln(out, "warning: incomplete trailing line, dropped on next ingest")
			}
			for _, e := range result.Entries {
				fmt.Fprintf(out, "%s\t%s\n", e.Digest, e.Path)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.DBType, "db-type", "", "database type")
	flags.StringVar(&req.LibraryDir, "library", "", "library directory (overrides --db-type)")
	flags.BoolVar(&req.Entries, "entries", false, "print every ledger line")
	return cmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		_ = cmd.Usage()
		return &usageError{err: err}
	}
	return nil
}
