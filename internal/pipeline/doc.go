// Package pipeline drives translation jobs through the processing stages.
//
// The Orchestrator owns the job lifecycle: it validates submissions, claims
// the single-job busy gate, and walks each job through audio extraction,
// transcription, translation, subtitle assembly, and output muxing while
// persisting state and progress to the ledger. Transcription and translation
// overlap through a bounded segment channel so early segments reach the
// translation provider while decoding continues.
//
// Cancellation is cooperative: the job context threads through every service
// call, subprocesses die with it, and the run settles into the cancelled
// state at the next checkpoint. Whatever translated segments exist when a
// run ends early are still written out as a partial sidecar.
//
// One job runs at a time per process. A second submission is rejected with a
// busy error rather than queued; the ledger records history, not work to do.
package pipeline
