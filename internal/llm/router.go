package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/content-engine/internal/logging"
	"github.com/jonathan/content-engine/internal/retry"
)

// Request is a single routed model call.
type Request struct {
	Prompt string
	Tier   ModelTier
	// JSON selects GenerateJSON instead of GenerateContent.
	JSON bool
	// Preferred is tried first when configured; otherwise it is ignored.
	Preferred Provider
}

// Response is the outcome of a routed model call.
type Response struct {
	Text         string
	Provider     Provider
	Model        string
	FallbackUsed bool
	Latency      time.Duration
	// Failures lists providers that failed before Provider answered.
	Failures []ProviderFailure
}

// RouterOptions tunes per-provider retries.
type RouterOptions struct {
	// MaxAttempts bounds attempts against a single provider.
	MaxAttempts int
	// RequestTimeout bounds each individual attempt. Zero means no extra limit.
	RequestTimeout time.Duration
	// Retry supplies backoff delays; MaxAttempts and IsRetryable are overridden.
	Retry  retry.Config
	Logger logging.Logger
}

// Router sends requests to an ordered list of providers, retrying transient
// failures on each and falling back to the next provider when one gives up.
type Router struct {
	clients []Client
	opts    RouterOptions
	logger  logging.Logger
}

// NewRouter creates a router over clients in fallback order.
func NewRouter(clients []Client, opts RouterOptions) *Router {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{clients: clients, opts: opts, logger: logger}
}

// ProviderSetup describes one provider to build a client for.
type ProviderSetup struct {
	Provider Provider
	APIKey   string
	// Models overrides default tier->model names.
	Models map[string]string
}

// NewRouterFromSetup builds clients for every setup with an API key, in the
// given order. It fails with ErrNoProviders when none can be built.
func NewRouterFromSetup(ctx context.Context, setups []ProviderSetup, opts RouterOptions) (*Router, error) {
	clients := make([]Client, 0, len(setups))
	for _, s := range setups {
		if s.APIKey == "" {
			continue
		}
		cfg := DefaultConfig(s.Provider).WithOverrides(s.Models)
		client, err := NewClient(ctx, cfg, s.APIKey)
		if err != nil {
			for _, c := range clients {
				_ = c.Close()
			}
			return nil, fmt.Errorf("failed to create %s client: %w", s.Provider, err)
		}
		clients = append(clients, client)
	}
	if len(clients) == 0 {
		return nil, ErrNoProviders
	}
	return NewRouter(clients, opts), nil
}

// Providers returns the configured providers in fallback order.
func (r *Router) Providers() []Provider {
	out := make([]Provider, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c.Provider())
	}
	return out
}

// Has reports whether p is configured.
func (r *Router) Has(p Provider) bool {
	for _, c := range r.clients {
		if c.Provider() == p {
			return true
		}
	}
	return false
}

// Generate runs req against the preferred provider, then the others in order.
func (r *Router) Generate(ctx context.Context, req Request) (*Response, error) {
	if len(r.clients) == 0 {
		return nil, ErrNoProviders
	}
	if req.Tier == "" {
		req.Tier = TierStandard
	}

	start := time.Now()
	var failures []ProviderFailure
	for i, client := range r.order(req.Preferred) {
		text, attempts, err := r.call(ctx, client, req)
		if err == nil {
			if i > 0 {
				r.logger.Warn("llm fallback provider answered",
					logging.String("provider", string(client.Provider())),
					logging.Int("failed_providers", len(failures)))
			}
			return &Response{
				Text:         text,
				Provider:     client.Provider(),
				Model:        client.GetModel(req.Tier),
				FallbackUsed: i > 0,
				Latency:      time.Since(start),
				Failures:     failures,
			}, nil
		}

		r.logger.Warn("llm provider failed",
			logging.String("provider", string(client.Provider())),
			logging.Int("attempts", attempts),
			logging.Error(err))
		failures = append(failures, ProviderFailure{
			Provider: client.Provider(),
			Attempts: attempts,
			Error:    err.Error(),
			err:      err,
		})

		if ctx.Err() != nil {
			return nil, fmt.Errorf("llm request aborted: %w", ctx.Err())
		}
	}

	return nil, &AllProvidersFailedError{Failures: failures}
}

// call runs req against one client with retries and returns the attempt count.
func (r *Router) call(ctx context.Context, client Client, req Request) (string, int, error) {
	cfg := r.opts.Retry
	cfg.MaxAttempts = r.opts.MaxAttempts
	cfg.IsRetryable = isTransient

	attempts := 0
	var text string
	err := retry.Do(ctx, cfg, func() error {
		attempts++
		callCtx := ctx
		if r.opts.RequestTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.opts.RequestTimeout)
			defer cancel()
		}

		var err error
		if req.JSON {
			text, err = client.GenerateJSON(callCtx, req.Prompt, req.Tier)
		} else {
			text, err = client.GenerateContent(callCtx, req.Prompt, req.Tier)
		}
		return err
	})
	if err != nil {
		return "", attempts, err
	}
	return text, attempts, nil
}

// order returns the clients with the preferred provider moved to the front.
func (r *Router) order(preferred Provider) []Client {
	if preferred == "" {
		return r.clients
	}
	out := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		if c.Provider() == preferred {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return r.clients
	}
	for _, c := range r.clients {
		if c.Provider() != preferred {
			out = append(out, c)
		}
	}
	return out
}

// Close closes every client and returns the first error.
func (r *Router) Close() error {
	var first error
	for _, c := range r.clients {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func isTransient(err error) bool {
	var empty *EmptyResponseError
	if errors.As(err, &empty) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return retry.DefaultIsRetryable(err)
}
