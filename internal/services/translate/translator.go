package translate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"glossa/internal/services"
)

const defaultHTTPTimeout = 2 * time.Minute

// Translator is the provider contract. TranslateBatch returns translations
// in request order. Implementations may return fewer items than requested
// when the service misbehaves; the engine repairs counts positionally.
type Translator interface {
	Name() string
	TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}

// IsTransient reports whether a provider failure is worth retrying. Network
// errors and throttling/availability statuses are transient; auth, quota,
// and malformed-response failures are not.
func IsTransient(err error) bool {
	return errors.Is(err, services.ErrTransient)
}

// retryableStatus reports whether an HTTP status indicates a transient
// service condition.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// clientOptions collects the knobs shared by both providers.
type clientOptions struct {
	httpClient *http.Client
	baseURL    string
}

// Option customizes a provider client.
type Option func(*clientOptions)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(o *clientOptions) {
		base = strings.TrimSpace(base)
		if base != "" {
			o.baseURL = strings.TrimRight(base, "/")
		}
	}
}

func buildClientOptions(defaultBase string, opts []Option) clientOptions {
	options := clientOptions{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    defaultBase,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.httpClient == nil {
		options.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if options.baseURL == "" {
		options.baseURL = defaultBase
	}
	return options
}
