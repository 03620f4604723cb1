package arena

import "errors"

var (
	// ErrNoSpace is returned when a request cannot be satisfied because
	// neither the recycle cache nor the OS could produce more address
	// space.
	ErrNoSpace = errors.New("arena: no space available")

	// ErrCorrupt is never returned to a caller — it is the message
	// carried by a panic raised on a detected invariant violation
	// (double free, bad run state, negative counters).
	ErrCorrupt = errors.New("arena: corrupted heap state")
)
