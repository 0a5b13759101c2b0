// Package library submits sequence files to an external k-mer library.
package library

import (
	"context"
	"fmt"
)

// DefaultBinary is the Kraken2 database build tool.
const DefaultBinary = "kraken2-build"

// Committer adds files to a library. Commit succeeds only when every path was
// added. A failed call that added some paths returns a *CommitError whose
// Added counts them; any other error means no path was added.
type Committer interface {
	Commit(ctx context.Context, paths ...string) error
}

// Kraken2 adds files with "kraken2-build --add-to-library".
type Kraken2 struct {
	Binary string
	DB     string
	Runner Runner
	Logf   func(format string, args ...any)
}

// Commit runs the add-to-library step once per path, stopping at the first failure.
func (k *Kraken2) Commit(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if k.DB == "" {
		return fmt.Errorf("library: database directory not set")
	}
	binary := k.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	runner := k.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	for i, path := range paths {
		output, err := runner.Run(ctx, "", binary, "--db", k.DB, "--add-to-library", path)
		if err != nil {
			return &CommitError{Paths: []string{path}, Added: i, Output: string(output), Err: err}
		}
		if k.Logf != nil {
			k.Logf("library add db=%s path=%s", k.DB, path)
		}
	}
	return nil
}
