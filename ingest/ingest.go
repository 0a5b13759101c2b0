// Package ingest runs the incremental add-to-library pass.
//
// Each candidate is hashed (through its sidecar when present), checked
// against the library ledger, and submitted only when its content has not
// been committed before. A digest is inserted into the ledger right after its
// commit succeeds, so an interrupted pass resumes where it stopped.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/kdb/digest"
	"github.com/viant/kdb/library"
	"golang.org/x/sync/errgroup"
)

// Run executes one ingestion pass. On cancellation it finishes in-flight
// commits, syncs the ledger and returns the partial summary with ErrInterrupted.
func Run(ctx context.Context, req *Request) (*Summary, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	candidates := req.Candidates
	if candidates == nil {
		var err error
		if candidates, err = req.Enumerator.Enumerate(ctx, req.Source); err != nil {
			if ctx.Err() != nil {
				return newSummary(req.Library, nil, started), ErrInterrupted
			}
			return nil, fmt.Errorf("ingest: enumerate: %w", err)
		}
	}
	p := newPass(req, len(candidates))
	for i, c := range candidates {
		p.results[i] = FileResult{Path: c.Path, Group: c.Group}
	}
	p.logf("ingest start library=%s files=%d threads=%d batch=%d", req.Library, len(candidates), req.threads(), req.batchSize())

	p.hash(ctx)
	units := p.classify()
	err := p.commit(ctx, units)
	p.finish()

	summary := newSummary(req.Library, p.results, started)
	if err != nil {
		return summary, err
	}
	if ctx.Err() != nil {
		summary.Interrupted = true
		if serr := req.Ledger.Sync(); serr != nil {
			return summary, fmt.Errorf("%w: ledger sync: %v", ErrInterrupted, serr)
		}
		p.logf("ingest interrupted library=%s %s", req.Library, summary.Total)
		return summary, ErrInterrupted
	}
	p.logf("ingest done library=%s %s elapsed=%s", req.Library, summary.Total, summary.Duration.Round(time.Millisecond))
	return summary, nil
}

// unit is one distinct digest not yet in the ledger; members index results in
// enumeration order, the first being the representative.
type unit struct {
	digest  digest.Digest
	members []int
}

type pass struct {
	req     *Request
	mu      sync.Mutex
	results []FileResult
	done    int
}

func newPass(req *Request, n int) *pass {
	return &pass{req: req, results: make([]FileResult, n)}
}

func (p *pass) logf(format string, args ...any) {
	if p.req.Logf != nil {
		p.req.Logf(format, args...)
	}
}

func (p *pass) path(i int) string {
	return p.results[i].Path
}

func (p *pass) set(i int, state State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := &p.results[i]
	if r.State.Terminal() {
		return
	}
	r.State = state
	r.Err = err
	if !state.Terminal() {
		return
	}
	p.done++
	if p.req.Observer != nil {
		p.req.Observer.Observe(*r)
	}
	if p.req.Progress != nil {
		p.req.Progress(p.done, len(p.results))
	}
}

func (p *pass) hash(ctx context.Context) {
	g := new(errgroup.Group)
	g.SetLimit(p.req.threads())
	// a started read is allowed to finish so its sidecar is written
	work := context.WithoutCancel(ctx)
	for i := range p.results {
		i := i
		if ctx.Err() != nil {
			p.set(i, Interrupted, nil)
			continue
		}
		g.Go(func() error {
			d, source, err := p.req.Digests.Digest(work, p.path(i))
			if err != nil {
				p.logf("ingest unreadable path=%s err=%v", p.path(i), err)
				p.set(i, Unreadable, err)
				return nil
			}
			p.mu.Lock()
			p.results[i].Digest = d
			p.results[i].Source = source
			p.mu.Unlock()
			p.set(i, Hashed, nil)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *pass) classify() []*unit {
	byDigest := map[digest.Digest]*unit{}
	var units []*unit
	for i := range p.results {
		r := &p.results[i]
		if r.State != Hashed {
			continue
		}
		if p.req.Ledger.Contains(r.Digest) {
			p.set(i, Skipped, nil)
			continue
		}
		u, ok := byDigest[r.Digest]
		if !ok {
			u = &unit{digest: r.Digest}
			byDigest[r.Digest] = u
			units = append(units, u)
		}
		u.members = append(u.members, i)
	}
	return units
}

func (p *pass) commit(ctx context.Context, units []*unit) error {
	g := new(errgroup.Group)
	var stopped atomic.Bool
	// a slot is taken before the cancellation check: a cancelled pass starts no new batch
	slots := make(chan struct{}, p.req.threads())
	// the external call is not cancelled midway
	work := context.WithoutCancel(ctx)
	size := p.req.batchSize()
	for start := 0; start < len(units); start += size {
		slots <- struct{}{}
		if ctx.Err() != nil || stopped.Load() {
			<-slots
			p.interrupt(units[start:])
			break
		}
		batch := units[start:min(start+size, len(units))]
		g.Go(func() error {
			err := p.commitBatch(work, batch)
			if err != nil {
				stopped.Store(true)
			}
			<-slots
			return err
		})
	}
	return g.Wait()
}

func (p *pass) interrupt(units []*unit) {
	for _, u := range units {
		for _, i := range u.members {
			p.set(i, Interrupted, nil)
		}
	}
}

func (p *pass) commitBatch(ctx context.Context, batch []*unit) error {
	for len(batch) > 1 {
		paths := make([]string, len(batch))
		for k, u := range batch {
			paths[k] = p.path(u.members[0])
			p.set(u.members[0], Submitting, nil)
		}
		err := p.req.Committer.Commit(ctx, paths...)
		if err == nil {
			for _, u := range batch {
				if err := p.record(u, 0); err != nil {
					return err
				}
			}
			return nil
		}
		var commitErr *library.CommitError
		if !errors.As(err, &commitErr) || commitErr.Added < 0 || commitErr.Added >= len(batch) {
			// nothing of the batch was added
			p.logf("ingest batch failed files=%d err=%v, retrying one by one", len(batch), err)
			for _, u := range batch {
				if err := p.commitUnit(ctx, u, 0); err != nil {
					return err
				}
			}
			return nil
		}
		added := commitErr.Added
		for _, u := range batch[:added] {
			if err := p.record(u, 0); err != nil {
				return err
			}
		}
		failed := batch[added]
		p.logf("ingest commit failed path=%s digest=%s err=%v", p.path(failed.members[0]), failed.digest, err)
		p.set(failed.members[0], Failed, err)
		if err := p.commitUnit(ctx, failed, 1); err != nil {
			return err
		}
		batch = batch[added+1:]
	}
	if len(batch) == 1 {
		return p.commitUnit(ctx, batch[0], 0)
	}
	return nil
}

// commitUnit submits members from index from on, falling back to alternates with the same content.
func (p *pass) commitUnit(ctx context.Context, u *unit, from int) error {
	for k := from; k < len(u.members); k++ {
		i := u.members[k]
		p.set(i, Submitting, nil)
		if err := p.req.Committer.Commit(ctx, p.path(i)); err != nil {
			p.logf("ingest commit failed path=%s digest=%s err=%v", p.path(i), u.digest, err)
			p.set(i, Failed, err)
			continue
		}
		return p.record(u, k)
	}
	return nil
}

// record ledgers a committed member. A ledger failure stops the pass: the
// file is in the library but unrecorded, and will be resubmitted next pass.
func (p *pass) record(u *unit, k int) error {
	i := u.members[k]
	if err := p.req.Ledger.Insert(u.digest, p.path(i)); err != nil {
		p.set(i, Failed, err)
		return fmt.Errorf("ingest: ledger insert %s: %w", p.path(i), err)
	}
	p.logf("ingest commit path=%s digest=%s", p.path(i), u.digest)
	p.set(i, Committed, nil)
	for _, other := range u.members[k+1:] {
		p.set(other, Skipped, nil)
	}
	return nil
}

// finish marks files left mid-flight by a stopped pass.
func (p *pass) finish() {
	for i := range p.results {
		if !p.results[i].State.Terminal() {
			p.set(i, Interrupted, nil)
		}
	}
}
