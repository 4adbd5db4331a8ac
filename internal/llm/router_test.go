package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/content-engine/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient returns queued results in order, repeating the last one.
type fakeClient struct {
	mu       sync.Mutex
	provider Provider
	results  []fakeResult
	calls    int
	lastTier ModelTier
	lastJSON bool
	closed   bool
}

type fakeResult struct {
	text string
	err  error
}

func newFake(p Provider, results ...fakeResult) *fakeClient {
	return &fakeClient{provider: p, results: results}
}

func (f *fakeClient) next(tier ModelTier, jsonMode bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTier = tier
	f.lastJSON = jsonMode
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	r := f.results[idx]
	return r.text, r.err
}

func (f *fakeClient) GenerateContent(_ context.Context, _ string, tier ModelTier) (string, error) {
	return f.next(tier, false)
}

func (f *fakeClient) GenerateJSON(_ context.Context, _ string, tier ModelTier) (string, error) {
	return f.next(tier, true)
}

func (f *fakeClient) GetModel(tier ModelTier) string { return string(f.provider) + "-" + string(tier) }
func (f *fakeClient) Provider() Provider             { return f.provider }
func (f *fakeClient) Close() error                   { f.closed = true; return nil }

func transientErr(p Provider) error {
	return &APICallError{Provider: p, Model: "m", StatusCode: 503, Cause: errors.New("overloaded")}
}

func permanentErr(p Provider) error {
	return &APICallError{Provider: p, Model: "m", StatusCode: 400, Cause: errors.New("bad request")}
}

func testOptions(attempts int) RouterOptions {
	return RouterOptions{
		MaxAttempts: attempts,
		Retry:       retry.Config{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
}

func TestRouter_FirstProviderAnswers(t *testing.T) {
	gemini := newFake(ProviderGemini, fakeResult{text: `{"ok":true}`})
	claude := newFake(ProviderAnthropic, fakeResult{text: "unused"})
	router := NewRouter([]Client{gemini, claude}, testOptions(2))

	resp, err := router.Generate(context.Background(), Request{Prompt: "p", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Text)
	assert.Equal(t, ProviderGemini, resp.Provider)
	assert.Equal(t, "gemini-standard", resp.Model)
	assert.False(t, resp.FallbackUsed)
	assert.Empty(t, resp.Failures)
	assert.True(t, gemini.lastJSON)
	assert.Equal(t, TierStandard, gemini.lastTier)
	assert.Equal(t, 0, claude.calls)
}

func TestRouter_RetriesTransientThenSucceeds(t *testing.T) {
	gemini := newFake(ProviderGemini,
		fakeResult{err: transientErr(ProviderGemini)},
		fakeResult{text: "done"},
	)
	router := NewRouter([]Client{gemini}, testOptions(3))

	resp, err := router.Generate(context.Background(), Request{Prompt: "p", Tier: TierLite})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text)
	assert.Equal(t, 2, gemini.calls)
	assert.False(t, resp.FallbackUsed)
	assert.Equal(t, TierLite, gemini.lastTier)
}

func TestRouter_FallsBackAfterPermanentError(t *testing.T) {
	gemini := newFake(ProviderGemini, fakeResult{err: permanentErr(ProviderGemini)})
	claude := newFake(ProviderAnthropic, fakeResult{text: "from claude"})
	router := NewRouter([]Client{gemini, claude}, testOptions(3))

	resp, err := router.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, resp.Provider)
	assert.True(t, resp.FallbackUsed)
	assert.Equal(t, 1, gemini.calls, "permanent errors are not retried")
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, ProviderGemini, resp.Failures[0].Provider)
	assert.Equal(t, 1, resp.Failures[0].Attempts)
}

func TestRouter_PreferredProviderFirst(t *testing.T) {
	gemini := newFake(ProviderGemini, fakeResult{text: "gemini"})
	claude := newFake(ProviderAnthropic, fakeResult{text: "claude"})
	router := NewRouter([]Client{gemini, claude}, testOptions(1))

	resp, err := router.Generate(context.Background(), Request{Prompt: "p", Preferred: ProviderAnthropic})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, resp.Provider)
	assert.False(t, resp.FallbackUsed)
	assert.Equal(t, 0, gemini.calls)
}

func TestRouter_UnknownPreferredUsesDefaultOrder(t *testing.T) {
	gemini := newFake(ProviderGemini, fakeResult{text: "gemini"})
	router := NewRouter([]Client{gemini}, testOptions(1))

	resp, err := router.Generate(context.Background(), Request{Prompt: "p", Preferred: ProviderAnthropic})
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, resp.Provider)
	assert.False(t, resp.FallbackUsed)
}

func TestRouter_AllProvidersFail(t *testing.T) {
	gemini := newFake(ProviderGemini, fakeResult{err: transientErr(ProviderGemini)})
	claude := newFake(ProviderAnthropic, fakeResult{err: permanentErr(ProviderAnthropic)})
	router := NewRouter([]Client{gemini, claude}, testOptions(2))

	_, err := router.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)

	var allErr *AllProvidersFailedError
	require.ErrorAs(t, err, &allErr)
	require.Len(t, allErr.Failures, 2)
	assert.Equal(t, 2, allErr.Failures[0].Attempts)
	assert.Equal(t, 1, allErr.Failures[1].Attempts)
	assert.Contains(t, err.Error(), "gemini")
	assert.Contains(t, err.Error(), "anthropic")

	var callErr *APICallError
	assert.ErrorAs(t, err, &callErr)
}

func TestRouter_NoProviders(t *testing.T) {
	router := NewRouter(nil, testOptions(1))
	_, err := router.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestRouter_ProvidersAndClose(t *testing.T) {
	gemini := newFake(ProviderGemini, fakeResult{text: "x"})
	claude := newFake(ProviderAnthropic, fakeResult{text: "y"})
	router := NewRouter([]Client{gemini, claude}, testOptions(1))

	assert.Equal(t, []Provider{ProviderGemini, ProviderAnthropic}, router.Providers())
	assert.True(t, router.Has(ProviderAnthropic))
	assert.False(t, router.Has("openai"))
	require.NoError(t, router.Close())
	assert.True(t, gemini.closed)
	assert.True(t, claude.closed)
}

func TestNewRouterFromSetup_SkipsMissingKeys(t *testing.T) {
	_, err := NewRouterFromSetup(context.Background(), []ProviderSetup{
		{Provider: ProviderGemini},
		{Provider: ProviderAnthropic},
	}, testOptions(1))
	assert.ErrorIs(t, err, ErrNoProviders)

	router, err := NewRouterFromSetup(context.Background(), []ProviderSetup{
		{Provider: ProviderGemini},
		{Provider: ProviderAnthropic, APIKey: "sk-test", Models: map[string]string{"standard": "claude-x"}},
	}, testOptions(1))
	require.NoError(t, err)
	assert.Equal(t, []Provider{ProviderAnthropic}, router.Providers())
	assert.Equal(t, "claude-x", router.clients[0].GetModel(TierStandard))
}

func TestAPICallError_Retryable(t *testing.T) {
	tests := []struct {
		name string
		err  *APICallError
		want bool
	}{
		{name: "429", err: &APICallError{StatusCode: 429, Cause: errors.New("x")}, want: true},
		{name: "500", err: &APICallError{StatusCode: 500, Cause: errors.New("x")}, want: true},
		{name: "401", err: &APICallError{StatusCode: 401, Cause: errors.New("x")}, want: false},
		{name: "unknown status transient text", err: &APICallError{Cause: errors.New("rpc error: code = Unavailable")}, want: true},
		{name: "unknown status other", err: &APICallError{Cause: errors.New("invalid argument")}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Retryable())
		})
	}
}
