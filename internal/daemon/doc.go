// Package daemon coordinates the long-running Glossa process.
//
// It wires configuration, the job ledger, the whisper model registry, and
// the pipeline orchestrator into a single lifecycle with flock-based locking
// to prevent multiple instances. Run owns startup and shutdown: interrupted
// jobs are recovered, a readiness snapshot is logged, the control socket is
// served, and SIGINT/SIGTERM or a control-socket shutdown drains the active
// job before exit.
//
// Keep orchestration logic here: the pipeline stages live in their own
// packages while the daemon focuses on process lifecycle and the control
// surface.
package daemon
