package ingest

// State is the position of one candidate file in an ingestion pass.
type State int

const (
	Pending State = iota
	Hashed
	Submitting
	// Skipped means the content was already in the library.
	Skipped
	Committed
	// Failed means the add-to-library call failed; the file is retried next pass.
	Failed
	// Unreadable means the file could not be hashed.
	Unreadable
	// Interrupted means the pass stopped before the file was attempted.
	Interrupted
)

var stateNames = [...]string{"pending", "hashed", "submitting", "skipped", "committed", "failed", "unreadable", "interrupted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition happens within the pass.
func (s State) Terminal() bool {
	return s >= Skipped
}
