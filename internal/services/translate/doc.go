// Package translate turns recognized segments into target-language text.
//
// Providers implement the Translator contract over a remote API (OpenAI chat
// completions or DeepL). The Engine batches segments so no batch boundary
// splits a segment, runs a bounded number of batches concurrently, and
// retries transient failures per an explicit RetryPolicy. Translation
// failures are never fatal: affected segments keep their source text and are
// flagged, and the job completes with a partial-failure report.
package translate
