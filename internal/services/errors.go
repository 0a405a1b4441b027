package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the pipeline error taxonomy. Stage code tags failures
// with one of these via Wrap so callers can classify with errors.Is without
// string matching.
var (
	// ErrMedia marks extraction or probing failures (fatal to the job).
	ErrMedia = errors.New("media error")
	// ErrModelLoad marks missing or corrupt model weights (fatal,
	// non-retryable without user intervention).
	ErrModelLoad = errors.New("model load error")
	// ErrTranscription marks decode failures mid-transcription.
	ErrTranscription = errors.New("transcription error")
	// ErrTranslation marks per-segment translation failures (non-fatal,
	// the job completes with flagged segments).
	ErrTranslation = errors.New("translation error")
	// ErrMux marks mux or burn-in failures (fatal to the muxing stage only,
	// an already-written sidecar remains valid).
	ErrMux = errors.New("mux error")
	// ErrBusy marks a submission rejected while another job is active.
	ErrBusy = errors.New("pipeline busy")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind names the taxonomy bucket an error belongs to, for status surfaces and
// ledger rows. Cancellation is reported as its own kind since it is a clean
// terminal, not a failure.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrMedia):
		return "media"
	case errors.Is(err, ErrModelLoad):
		return "model_load"
	case errors.Is(err, ErrTranscription):
		return "transcription"
	case errors.Is(err, ErrTranslation):
		return "translation"
	case errors.Is(err, ErrMux):
		return "mux"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
