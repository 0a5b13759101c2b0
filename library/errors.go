package library

import (
	"fmt"
	"strings"
)

// CommitError describes a failed add-to-library invocation.
type CommitError struct {
	Paths []string
	// Added is the number of leading paths of the call that were added before the failure.
	Added  int
	Output string
	Err    error
}

func (e *CommitError) Error() string {
	msg := fmt.Sprintf("library: add %s: %v", strings.Join(e.Paths, ", "), e.Err)
	if out := lastLine(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

func lastLine(output string) string {
	output = strings.TrimSpace(output)
	if i := strings.LastIndexByte(output, '\n'); i >= 0 {
		return strings.TrimSpace(output[i+1:])
	}
	return output
}
