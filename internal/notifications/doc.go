// Package notifications delivers job events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. The pipeline emits one notification per terminal job state so
// long-running runs can be watched from a phone without tailing logs.
//
// Extend this package if you need alternative transports; pipeline code
// depends only on the simple Service interface.
package notifications
