package ingest

import (
	"fmt"
	"sort"
	"time"

	"github.com/viant/kdb/digest"
	"github.com/viant/kdb/sidecar"
)

// FileResult is the outcome for one candidate.
type FileResult struct {
	Path   string
	Group  string
	Digest digest.Digest
	Source sidecar.Source
	State  State
	Err    error
}

// Counts tallies files by terminal state.
type Counts struct {
	Files       int
	Committed   int
	Skipped     int
	Failed      int
	Unreadable  int
	Interrupted int
}

func (c *Counts) add(state State) {
	c.Files++
	switch state {
	case Committed:
		c.Committed++
	case Skipped:
		c.Skipped++
	case Failed:
		c.Failed++
	case Unreadable:
		c.Unreadable++
	case Interrupted:
		c.Interrupted++
	}
}

func (c Counts) String() string {
	return fmt.Sprintf("committed=%d skipped=%d failed=%d unreadable=%d interrupted=%d",
		c.Committed, c.Skipped, c.Failed, c.Unreadable, c.Interrupted)
}

// Summary reports an ingestion pass.
type Summary struct {
	Library string
	Total   Counts
	// Groups holds per organism group counts; explicit roots use the "" key.
	Groups map[string]*Counts
	// Reused counts digests read from sidecars; Computed counts files hashed.
	Reused   int
	Computed int
	Files    []FileResult
	Started  time.Time
	Duration time.Duration
	// Interrupted is set when the pass stopped on cancellation.
	Interrupted bool
}

// GroupNames returns group keys in first-seen order of the file results.
func (s *Summary) GroupNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, f := range s.Files {
		if !seen[f.Group] {
			seen[f.Group] = true
			names = append(names, f.Group)
		}
	}
	if len(names) == 0 {
		for name := range s.Groups {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	return names
}

// ByState returns the paths in the given state, in enumeration order.
func (s *Summary) ByState(state State) []string {
	var out []string
	for _, f := range s.Files {
		if f.State == state {
			out = append(out, f.Path)
		}
	}
	return out
}

func (s *Summary) String() string {
	return s.Total.String()
}

func newSummary(library string, files []FileResult, started time.Time) *Summary {
	s := &Summary{Library: library, Groups: map[string]*Counts{}, Files: files, Started: started, Duration: time.Since(started)}
	for _, f := range files {
		s.Total.add(f.State)
		g, ok := s.Groups[f.Group]
		if !ok {
			g = &Counts{}
			s.Groups[f.Group] = g
		}
		g.add(f.State)
		if f.Digest.IsZero() {
			continue
		}
		if f.Source == sidecar.SourceSidecar {
			s.Reused++
		} else {
			s.Computed++
		}
	}
	return s
}
