// Package ledger persists translation job history in SQLite.
//
// The Store records every submitted job with its lifecycle state, progress
// snapshot, artifact paths, and heartbeat so the control socket can answer
// status queries without touching the running pipeline goroutine. It is a
// history, not a queue: nothing is ever dequeued, and concurrent submissions
// are rejected upstream by the orchestrator's busy gate.
//
// The orchestrator is the only writer. Everything else reads.
package ledger
