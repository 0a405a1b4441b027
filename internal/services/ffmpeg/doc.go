// Package ffmpeg wraps the external media toolchain: container probing with
// ffprobe, audio extraction to recognizer-ready PCM, and subtitle output via
// stream-copy muxing or burn-in re-encoding.
//
// All tool invocations go through the Executor interface so tests can script
// tool behavior without spawning processes. Errors carry the tool's stderr
// tail and the media/mux markers from the services package.
package ffmpeg
