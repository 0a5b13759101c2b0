// Package genome lists the sequence files that are candidates for ingestion.
package genome

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/viant/afs/url"
	"github.com/viant/kdb/matching"
	"github.com/viant/kdb/sidecar"
)

// ErrRootUnreadable indicates an explicit source root is missing or cannot be listed.
var ErrRootUnreadable = errors.New("genome: source root unreadable")

// Candidate is a file eligible for ingestion.
type Candidate struct {
	Path string
	// Group is the organism group the file was found under; empty for explicit roots.
	Group string
}

// Source selects what to enumerate: either Root, or GenomeDir with Groups.
type Source struct {
	Root      string
	GenomeDir string
	Groups    []string
}

// Enumerator walks sources and filters files through a matching.Manager.
type Enumerator struct {
	fs      Service
	matcher *matching.Manager
}

// New creates an Enumerator.
func New(matcher *matching.Manager) *Enumerator {
	return NewWithFS(matcher, nil)
}

// NewWithFS creates an Enumerator with a custom listing backend.
func NewWithFS(matcher *matching.Manager, fs Service) *Enumerator {
	if fs == nil {
		fs = NewAFS()
	}
	if matcher == nil {
		matcher = matching.New()
	}
	return &Enumerator{fs: fs, matcher: matcher}
}

// Enumerate returns candidates sorted by path within each root, groups in
// declared order, with repeated paths dropped.
func (e *Enumerator) Enumerate(ctx context.Context, source Source) ([]Candidate, error) {
	if source.Root != "" {
		root, err := normalize(source.Root)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, source.Root, err)
		}
		ok, err := e.fs.Exists(ctx, root)
		if err != nil || !ok {
			return nil, fmt.Errorf("%w: %s", ErrRootUnreadable, source.Root)
		}
		paths, err := e.walk(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, source.Root, err)
		}
		return dedupe(nil, paths, ""), nil
	}

	var result []Candidate
	for _, group := range source.Groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir, err := normalize(filepath.Join(source.GenomeDir, group))
		if err != nil {
			return nil, err
		}
		ok, err := e.fs.Exists(ctx, dir)
		if err != nil || !ok {
			// not downloaded yet
			continue
		}
		paths, err := e.walk(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("genome: list group %s: %w", group, err)
		}
		result = dedupe(result, paths, group)
	}
	return result, nil
}

func dedupe(result []Candidate, paths []string, group string) []Candidate {
	sort.Strings(paths)
	seen := make(map[string]bool, len(result))
	for _, c := range result {
		seen[c.Path] = true
	}
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		result = append(result, Candidate{Path: p, Group: group})
	}
	return result
}

func (e *Enumerator) walk(ctx context.Context, location string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	objects, err := e.fs.List(ctx, location)
	if err != nil {
		return nil, err
	}
	var result []string
	base := url.Path(location)
	for _, object := range objects {
		objectPath := url.Path(object.URL())
		if object.IsDir() {
			if url.Equals(objectPath, base) || e.matcher.IsExcludedDir(objectPath) {
				continue
			}
			sub, err := e.walk(ctx, url.Join(location, object.Name()))
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
			continue
		}
		if sidecar.IsSidecar(objectPath) || e.matcher.IsExcluded(objectPath, object.Size()) {
			continue
		}
		result = append(result, objectPath)
	}
	return result, nil
}

func normalize(location string) (string, error) {
	if url.Scheme(location, "") != "" {
		return location, nil
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return "", err
	}
	return url.ToFileURL(abs), nil
}
