package ledger

import "errors"

var (
	// ErrCorrupt indicates the ledger file is malformed.
	ErrCorrupt = errors.New("ledger: file corrupt")
	// ErrAlgorithmMismatch indicates the ledger was written with another digest algorithm.
	ErrAlgorithmMismatch = errors.New("ledger: digest algorithm mismatch")
	// ErrLocked indicates another process holds the ledger writer lock.
	ErrLocked = errors.New("ledger: locked by another writer")
	// ErrLockTimeout indicates lock acquisition timed out.
	ErrLockTimeout = errors.New("ledger: lock timeout")
	// ErrClosed is returned by Insert after Close.
	ErrClosed = errors.New("ledger: closed")
)
