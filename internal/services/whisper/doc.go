// Package whisper runs a local whisper-style speech-to-text CLI over
// extracted audio.
//
// Model weights are resolved and validated by a Registry that caches handles
// across jobs. The Recognizer streams decoded segments to a sink as the tool
// prints them, clamping overlapping timestamps with a one-segment lookahead,
// and reports detected language and decode progress scraped from stderr.
// Mid-run decode failures surface as *TranscriptionError carrying the number
// of segments already produced.
package whisper
