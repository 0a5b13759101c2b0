package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/viant/kdb/history"
	"github.com/viant/kdb/library"
)

// ErrMissingLibrary indicates neither a data-set type nor a library directory was given.
var ErrMissingLibrary = errors.New("service: library not specified")

// Option configures the Service.
type Option func(*Service)

// WithConfig sets the configuration; defaults apply otherwise.
func WithConfig(cfg *Config) Option {
	return func(s *Service) { s.config = cfg }
}

// WithRunner sets the external process runner.
func WithRunner(runner library.Runner) Option {
	return func(s *Service) { s.runner = runner }
}

// WithLookPath sets the program lookup used by tool checks.
func WithLookPath(lookPath func(file string) (string, error)) Option {
	return func(s *Service) { s.lookPath = lookPath }
}

// Service exposes reusable operations for building and ingesting libraries.
type Service struct {
	config   *Config
	runner   library.Runner
	lookPath func(file string) (string, error)
}

// NewService creates a new Service.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	if s.config == nil {
		s.config = DefaultConfig()
	}
	s.config.applyDefaults()
	if s.runner == nil {
		s.runner = library.ExecRunner{}
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}

// LibraryDir returns <cacheDir>/k2_<dbType>.
func (s *Service) LibraryDir(dbType string) string {
	return filepath.Join(s.config.CacheDir, "k2_"+dbType)
}

func (s *Service) resolveLibrary(dbType, libraryDir string) (string, error) {
	switch {
	case strings.TrimSpace(libraryDir) != "":
		return filepath.Abs(libraryDir)
	case strings.TrimSpace(dbType) != "":
		return s.LibraryDir(strings.TrimSpace(dbType)), nil
	}
	return "", ErrMissingLibrary
}

func (s *Service) threads(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.config.Threads
}

func (s *Service) openHistory(ctx context.Context) (*history.Store, error) {
	if s.config.History.Disabled {
		return nil, nil
	}
	dsn := s.config.History.DSN
	if dsn == "" {
		dsn = filepath.Join(s.config.CacheDir, history.FileName)
	}
	store, err := history.Open(ctx, s.config.History.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("service: open history: %w", err)
	}
	return store, nil
}

func logfOrNil(logf func(format string, args ...any)) func(format string, args ...any) {
	if logf == nil {
		return func(string, ...any) {}
	}
	return logf
}
