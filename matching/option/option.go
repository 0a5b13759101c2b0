package option

import (
	"bufio"
	"io"
	"strings"
)

// Options holds the naming rules that decide which files are sequence inputs.
type Options struct {
	// Inclusions are basename globs a candidate must match (any of).
	Inclusions []string

	// Exclusions are basename globs or directory segments ("name/") to skip.
	Exclusions []string

	// MinFileSize skips files smaller than this many bytes (0 disables).
	MinFileSize int64
}

// NewOptions creates Options; unset inclusions and exclusions fall back to defaults.
func NewOptions(opts ...Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}
	if options.Inclusions == nil {
		options.Inclusions = DefaultInclusions()
	}
	options.Exclusions = append(defaultExclusions(), options.Exclusions...)
	return options
}

// Option is a function that modifies Options
type Option func(*Options)

// WithExclusionPatterns adds exclusion patterns
func WithExclusionPatterns(patterns ...string) Option {
	return func(o *Options) {
		o.Exclusions = append(o.Exclusions, patterns...)
	}
}

// WithInclusionPatterns adds patterns to include
func WithInclusionPatterns(patterns ...string) Option {
	return func(o *Options) {
		o.Inclusions = append(o.Inclusions, patterns...)
	}
}

// WithMinFileSize skips files below size bytes.
func WithMinFileSize(size int64) Option {
	return func(o *Options) {
		o.MinFileSize = size
	}
}

// WithIgnoreFile adds patterns from a .gitignore style reader.
func WithIgnoreFile(reader io.Reader) Option {
	return func(o *Options) {
		if patterns := parseIgnoreFile(reader); len(patterns) > 0 {
			o.Exclusions = append(o.Exclusions, patterns...)
		}
	}
}

// DefaultInclusions returns the sequence file naming convention used by the
// genome downloader output.
func DefaultInclusions() []string {
	return []string{"*.fna"}
}

// defaultExclusions are never candidates regardless of configuration.
func defaultExclusions() []string {
	return []string{
		// digest sidecars
		"*.highway256",
		"*.sha256",
		// downloader archives, kept next to the unpacked copy
		"*.gz",
		"*.lock",
		".DS_Store",
		"*.tmp",
		"*.part",
	}
}

func parseIgnoreFile(reader io.Reader) []string {
	var patterns []string
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}
