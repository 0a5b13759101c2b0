package matching

import (
	"path/filepath"
	"strings"

	"github.com/viant/afs/url"
	"github.com/viant/kdb/matching/option"
)

// Manager decides whether a listed file is an ingestion candidate.
type Manager struct {
	options *option.Options
}

// New creates a manager with the given options
func New(opts ...option.Option) *Manager {
	return &Manager{options: option.NewOptions(opts...)}
}

// IsExcluded checks if a location should be skipped.
func (m *Manager) IsExcluded(location string, size int64) bool {
	if m.options.MinFileSize > 0 && size < m.options.MinFileSize {
		return true
	}
	path := filepath.ToSlash(url.Path(location))
	base := filepath.Base(path)
	if !m.isIncluded(base) {
		return true
	}
	for _, pattern := range m.options.Exclusions {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		if isExcluded(path, base, pattern) {
			return true
		}
	}
	return false
}

// IsExcludedDir reports whether a directory should not be descended into.
func (m *Manager) IsExcludedDir(location string) bool {
	path := filepath.ToSlash(url.Path(location)) + "/"
	for _, pattern := range m.options.Exclusions {
		pattern = strings.TrimSpace(pattern)
		if !strings.HasSuffix(pattern, "/") {
			continue
		}
		if strings.Contains(path, "/"+strings.TrimPrefix(pattern, "/")) {
			return true
		}
	}
	return false
}

func (m *Manager) isIncluded(base string) bool {
	for _, pattern := range m.options.Inclusions {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func isExcluded(path, base, pattern string) bool {
	// directory segment, e.g. "tmp/"
	if strings.HasSuffix(pattern, "/") {
		return strings.Contains(path, "/"+strings.TrimPrefix(pattern, "/"))
	}
	if matched, _ := filepath.Match(pattern, base); matched {
		return true
	}
	return pattern == base
}
