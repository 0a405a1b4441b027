package pipeline

import "glossa/internal/ledger"

// Event is one progress observation from a running job. The final event of
// a run has Terminal set and carries the settled state; failed runs also
// carry the error.
type Event struct {
	JobID    string
	Stage    string
	Percent  float64
	Message  string
	Terminal bool
	State    ledger.State
	Err      error
}

// ProgressFunc receives events as the pipeline crosses checkpoints. It is
// invoked inline from pipeline goroutines, so implementations must return
// quickly and must not call back into the orchestrator.
type ProgressFunc func(Event)
