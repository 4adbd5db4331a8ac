package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoProviders is returned when a Router has no configured clients.
var ErrNoProviders = errors.New("no llm providers configured")

// APICallError wraps a failed provider call with its HTTP status when known.
type APICallError struct {
	Provider   Provider
	Model      string
	StatusCode int
	Cause      error
}

func (e *APICallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s call failed (status %d): %v", e.Provider, e.Model, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s %s call failed: %v", e.Provider, e.Model, e.Cause)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

var transientMarkers = []string{
	"resource_exhausted",
	"unavailable",
	"overloaded",
	"internal error",
	"timeout",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"unexpected eof",
}

// Retryable reports whether the call is worth repeating against the same provider.
func (e *APICallError) Retryable() bool {
	if e.StatusCode != 0 {
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
	}
	if e.Cause == nil {
		return false
	}
	msg := strings.ToLower(e.Cause.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// EmptyResponseError indicates the provider answered without usable text.
type EmptyResponseError struct {
	Provider Provider
	Reason   string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s returned no usable content: %s", e.Provider, e.Reason)
}

// ProviderFailure records one provider's final error during routing.
type ProviderFailure struct {
	Provider Provider `json:"provider"`
	Attempts int      `json:"attempts"`
	Error    string   `json:"error"`
	err      error
}

// AllProvidersFailedError is returned when no provider produced a response.
type AllProvidersFailedError struct {
	Failures []ProviderFailure
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Provider, f.Error))
	}
	return "all llm providers failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the per-provider errors to errors.Is and errors.As.
func (e *AllProvidersFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.err != nil {
			errs = append(errs, f.err)
		}
	}
	return errs
}
