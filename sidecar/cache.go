// Package sidecar caches file digests in small files stored next to their sources.
//
// A sidecar is trusted once written: the source is never re-read to check it,
// so a file modified in place keeps its original digest until the sidecar is
// removed.
package sidecar

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/kdb/digest"
)

// Source tells where a digest came from.
type Source int

const (
	// SourceComputed means the file was read and hashed.
	SourceComputed Source = iota
	// SourceSidecar means the digest was read from an existing sidecar.
	SourceSidecar
)

func (s Source) String() string {
	if s == SourceSidecar {
		return "sidecar"
	}
	return "computed"
}

// Option configures a Cache.
type Option func(*Cache)

// WithFS sets the storage service used for sidecar IO.
func WithFS(fs afs.Service) Option {
	return func(c *Cache) { c.fs = fs }
}

// WithLogf sets the function used to report non-fatal sidecar problems.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(c *Cache) { c.logf = logf }
}

// Cache resolves digests through sidecar files.
type Cache struct {
	hasher *digest.Hasher
	fs     afs.Service
	logf   func(format string, args ...any)
}

// New creates a Cache computing missing digests with hasher.
func New(hasher *digest.Hasher, opts ...Option) *Cache {
	c := &Cache{hasher: hasher}
	for _, opt := range opts {
		opt(c)
	}
	if c.fs == nil {
		c.fs = afs.New()
	}
	return c
}

// Suffix returns the sidecar file extension, including the leading dot.
func (c *Cache) Suffix() string {
	return "." + c.hasher.Algorithm()
}

// Path returns the sidecar location for a source file.
func (c *Cache) Path(source string) string {
	return source + c.Suffix()
}

// IsSidecar reports whether name looks like a sidecar of any supported algorithm.
func IsSidecar(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return digest.Supported(ext)
}

// Digest returns the digest of the file at path, reading its sidecar when present.
// A failed sidecar write is logged and does not fail the call.
func (c *Cache) Digest(ctx context.Context, path string) (digest.Digest, Source, error) {
	URL := toURL(c.Path(path))
	if d, ok := c.read(ctx, URL); ok {
		return d, SourceSidecar, nil
	}
	d, err := c.hasher.File(path)
	if err != nil {
		return digest.Digest{}, SourceComputed, err
	}
	if err := c.fs.Upload(ctx, URL, file.DefaultFileOsMode, strings.NewReader(d.String()+"\n")); err != nil {
		c.log("sidecar write failed path=%s err=%v", c.Path(path), err)
	}
	return d, SourceComputed, nil
}

func (c *Cache) read(ctx context.Context, URL string) (digest.Digest, bool) {
	exists, err := c.fs.Exists(ctx, URL)
	if err != nil || !exists {
		return digest.Digest{}, false
	}
	data, err := c.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		c.log("sidecar read failed path=%s err=%v", url.Path(URL), err)
		return digest.Digest{}, false
	}
	d, err := digest.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		c.log("sidecar ignored path=%s err=%v", url.Path(URL), err)
		return digest.Digest{}, false
	}
	return d, true
}

func (c *Cache) log(format string, args ...any) {
	if c.logf != nil {
		c.logf(format, args...)
	}
}

func toURL(path string) string {
	if url.Scheme(path, "") != "" {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return url.ToFileURL(path)
}
