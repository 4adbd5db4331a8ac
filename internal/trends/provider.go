// Package trends collects trending-product signals per niche from feeds, pages
// and the model, and keeps the aggregated list in the store.
package trends

import (
	"context"
	"errors"

	"github.com/jonathan/content-engine/internal/types"
)

// Signal is one product observation from one source.
type Signal = types.TrendSignal

// Provider fetches trend signals for a niche.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, niche string) ([]Signal, error)
}

var (
	// ErrNoProviders is returned by Refresh when no provider is configured.
	ErrNoProviders = errors.New("no trend providers configured")

	// ErrUnknownNiche is returned for niches outside the catalog.
	ErrUnknownNiche = errors.New("unknown niche")
)

// ProviderError wraps a failure from one provider.
type ProviderError struct {
	Provider string
	Cause    error
}

func (e *ProviderError) Error() string {
	return "trend provider " + e.Provider + ": " + e.Cause.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// RefreshError is returned when every provider failed for a niche.
type RefreshError struct {
	Niche    string
	Failures []*ProviderError
}

func (e *RefreshError) Error() string {
	msg := "all trend providers failed for " + e.Niche
	for _, f := range e.Failures {
		msg += "; " + f.Error()
	}
	return msg
}

// Unwrap exposes the provider failures to errors.Is and errors.As.
func (e *RefreshError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
