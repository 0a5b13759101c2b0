package service

import (
	"github.com/viant/kdb/ingest"
	"github.com/viant/kdb/ledger"
)

// IngestRequest defines inputs for an incremental library pass.
type IngestRequest struct {
	// DBType names the library (k2_<DBType>) and, without Root or Groups, its organism groups.
	DBType string
	// LibraryDir overrides the library location derived from DBType.
	LibraryDir string
	// Root is an explicit genome directory used instead of the downloaded groups.
	Root string
	// Groups overrides the organism groups resolved from DBType.
	Groups    []string
	Threads   int
	BatchSize int
	Logf      func(format string, args ...any)
	Progress  func(done, total int)
}

// BuildRequest defines inputs for a full database build.
type BuildRequest struct {
	DBType  string
	Threads int
	// Force removes the library, including its ledger, before building.
	Force        bool
	SkipMaps     bool
	Protein      bool
	SkipTaxonomy bool
	SkipDownload bool
	SkipIndex    bool
	Logf         func(format string, args ...any)
	Progress     func(done, total int)
}

// IngestResult reports an ingestion pass.
type IngestResult struct {
	RunID      string
	LibraryDir string
	LedgerPath string
	Summary    *ingest.Summary
	// LedgerEntries is the ledger size after the pass.
	LedgerEntries int
}

// LedgerRequest selects a library ledger for inspection.
type LedgerRequest struct {
	DBType     string
	LibraryDir string
	// Entries includes the ledger lines in the result.
	Entries bool
}

// LedgerResult describes a library ledger.
type LedgerResult struct {
	Info    ledger.Info
	Entries []ledger.Entry
}

// HistoryRequest selects recorded passes.
type HistoryRequest struct {
	DBType string
	Limit  int
}
