package ingest

import (
	"context"
	"errors"

	"github.com/viant/kdb/digest"
	"github.com/viant/kdb/genome"
	"github.com/viant/kdb/library"
	"github.com/viant/kdb/sidecar"
)

// ErrInterrupted is returned by Run when the pass context was cancelled.
var ErrInterrupted = errors.New("ingest: interrupted")

// Enumerator lists candidate files.
type Enumerator interface {
	Enumerate(ctx context.Context, source genome.Source) ([]genome.Candidate, error)
}

// Digester resolves file digests, typically through a sidecar.Cache.
type Digester interface {
	Digest(ctx context.Context, path string) (digest.Digest, sidecar.Source, error)
}

// Ledger is the committed digest set of the target library.
type Ledger interface {
	Contains(d digest.Digest) bool
	Insert(d digest.Digest, path string) error
	Sync() error
}

// Observer is notified once per file when it reaches a terminal state.
// Calls are serialized.
type Observer interface {
	Observe(result FileResult)
}

// Request describes one ingestion pass.
type Request struct {
	// Library is used for logging only.
	Library    string
	Source     genome.Source
	Enumerator Enumerator
	// Candidates, when set, replaces enumeration.
	Candidates []genome.Candidate

	Digests   Digester
	Ledger    Ledger
	Committer library.Committer

	// Threads bounds both hashing and commit workers.
	Threads int
	// BatchSize is the number of files per Commit call.
	BatchSize int

	Observer Observer
	// Progress receives the number of files in a terminal state and the total.
	Progress func(done, total int)
	Logf     func(format string, args ...any)
}

func (r *Request) validate() error {
	switch {
	case r.Ledger == nil:
		return errors.New("ingest: ledger not set")
	case r.Digests == nil:
		return errors.New("ingest: digester not set")
	case r.Committer == nil:
		return errors.New("ingest: committer not set")
	case r.Candidates == nil && r.Enumerator == nil:
		return errors.New("ingest: enumerator not set")
	}
	return nil
}

func (r *Request) threads() int {
	if r.Threads < 1 {
		return 1
	}
	return r.Threads
}

func (r *Request) batchSize() int {
	if r.BatchSize < 1 {
		return 1
	}
	return r.BatchSize
}
