// Package ledger records the content digests already committed to a library.
//
// The ledger is an append-only, line-oriented text file:
//
//	# kdb-ledger v1 algorithm=highway256
//	<hex digest>[<TAB><advisory path>]
//
// Every Insert appends and fsyncs one line before returning, so a digest that
// was reported as inserted survives any later crash. The file is never
// rewritten; only an incomplete trailing line left by a crash mid-append is
// cut off when the ledger is opened again.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/viant/kdb/digest"
)

// FileName is the ledger file name inside a library's library/ directory.
const FileName = "added.txt"

const lockSuffix = ".lock"

// Path returns the ledger location for a library directory.
func Path(libraryDir string) string {
	return filepath.Join(libraryDir, "library", FileName)
}

// Option configures Open.
type Option func(*options)

type options struct {
	lockBlocking bool
	lockTimeout  time.Duration
	logf         func(format string, args ...any)
}

// WithLock configures writer lock behavior.
// If blocking is true and timeout <= 0, Open waits indefinitely.
// If blocking is true and timeout > 0, Open retries until timeout, then fails with ErrLockTimeout.
// If blocking is false, Open fails immediately with ErrLocked when the lock is busy.
func WithLock(blocking bool, timeout time.Duration) Option {
	return func(o *options) {
		o.lockBlocking = blocking
		o.lockTimeout = timeout
	}
}

// WithLogf sets the function used to report recovered problems.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(o *options) { o.logf = logf }
}

// Ledger is the in-memory digest set of one library backed by its ledger file.
// Contains may be called concurrently with Insert; inserts are serialized.
type Ledger struct {
	path      string
	algorithm string
	mu        sync.RWMutex
	set       map[digest.Digest]struct{}
	file      *os.File
	lock      *os.File
	closed    bool
	// broken holds the first failed append; the file tail is unknown afterwards.
	broken error
}

// Open loads the ledger at path for writing, creating it when missing.
// A missing or empty file yields an empty ledger; a malformed one fails with ErrCorrupt.
func Open(path, algorithm string, opts ...Option) (*Ledger, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if !digest.Supported(algorithm) {
		return nil, fmt.Errorf("ledger: unsupported algorithm %q", algorithm)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	lock, err := acquire(path+lockSuffix, o)
	if err != nil {
		return nil, err
	}
	l, err := load(path, algorithm, o)
	if err != nil {
		_ = unlockFile(lock)
		_ = lock.Close()
		return nil, err
	}
	l.lock = lock
	return l, nil
}

func acquire(lockPath string, o *options) (*os.File, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger: open lock: %w", err)
	}
	var deadline time.Time
	if o.lockTimeout > 0 {
		deadline = time.Now().Add(o.lockTimeout)
	}
	for {
		err = tryLockExclusive(f)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, errWouldBlock) {
			_ = f.Close()
			return nil, fmt.Errorf("ledger: lock %s: %w", lockPath, err)
		}
		if !o.lockBlocking {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, lockPath)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func load(path, algorithm string, o *options) (*Ledger, error) {
	l := &Ledger{path: path, algorithm: algorithm, set: map[digest.Digest]struct{}{}}
	created := false
	var p *parsed
	f, err := os.Open(path)
	switch {
	case err == nil:
		p, err = parse(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		created = true
		p = &parsed{}
	default:
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}

	if p.info.Version != 0 && p.info.Algorithm != algorithm {
		return nil, fmt.Errorf("%w: %s was written with %s, configured %s", ErrAlgorithmMismatch, path, p.info.Algorithm, algorithm)
	}
	if p.info.TornTail {
		if err := os.Truncate(path, p.valid); err != nil {
			return nil, fmt.Errorf("ledger: truncate incomplete tail: %w", err)
		}
		if o.logf != nil {
			o.logf("ledger incomplete trailing line dropped path=%s offset=%d", path, p.valid)
		}
	}
	for _, entry := range p.entries {
		l.set[entry.Digest] = struct{}{}
	}

	l.file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger: open for append: %w", err)
	}
	if p.info.Version == 0 {
		if _, err := l.file.WriteString(header(algorithm)); err != nil {
			_ = l.file.Close()
			return nil, fmt.Errorf("ledger: write header: %w", err)
		}
		if err := l.file.Sync(); err != nil {
			_ = l.file.Close()
			return nil, fmt.Errorf("ledger: sync header: %w", err)
		}
		if created {
			if err := syncDir(filepath.Dir(path)); err != nil && o.logf != nil {
				o.logf("ledger directory sync failed path=%s err=%v", path, err)
			}
		}
	}
	return l, nil
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Algorithm returns the digest algorithm the ledger was opened with.
func (l *Ledger) Algorithm() string {
	return l.algorithm
}

// Contains reports whether d was already committed.
func (l *Ledger) Contains(d digest.Digest) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.set[d]
	return ok
}

// Len returns the number of committed digests.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.set)
}

// Digests returns all committed digests in byte order.
func (l *Ledger) Digests() []digest.Digest {
	l.mu.RLock()
	out := make([]digest.Digest, 0, len(l.set))
	for d := range l.set {
		out = append(out, d)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Insert durably records d. It returns only after the line is fsynced.
// Inserting a digest that is already present is a no-op.
func (l *Ledger) Insert(d digest.Digest, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.broken != nil {
		return fmt.Errorf("ledger: earlier append failed: %w", l.broken)
	}
	if _, ok := l.set[d]; ok {
		return nil
	}
	if _, err := l.file.WriteString(formatEntry(d, path)); err != nil {
		l.broken = err
		return fmt.Errorf("ledger: append: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		l.broken = err
		return fmt.Errorf("ledger: sync: %w", err)
	}
	l.set[d] = struct{}{}
	return nil
}

// Sync flushes the ledger file to stable storage.
func (l *Ledger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	return l.file.Sync()
}

// Close syncs the file and releases the writer lock. It is safe to call twice.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	var errs []error
	if err := l.file.Sync(); err != nil {
		errs = append(errs, err)
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if l.lock != nil {
		if err := unlockFile(l.lock); err != nil {
			errs = append(errs, err)
		}
		if err := l.lock.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
