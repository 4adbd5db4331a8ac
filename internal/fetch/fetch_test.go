package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.Headers = map[string]string{"Authorization": "Bearer token"}
	result, err := URL(context.Background(), server.URL, opts)
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Equal(t, `{"items":[]}`, result.Text())
	assert.Equal(t, "application/json", result.ContentType)
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestURL_InvalidURL(t *testing.T) {
	_, err := URL(context.Background(), "not-a-valid-url", nil)
	require.Error(t, err)

	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "invalid URL")
	assert.False(t, fetchErr.Retryable())
}

func TestURL_HTTPError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			result, err := URL(context.Background(), server.URL, nil)
			require.Error(t, err)
			require.NotNil(t, result)
			assert.Equal(t, tt.status, result.StatusCode)

			var fetchErr *Error
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.status, fetchErr.StatusCode)
			assert.Equal(t, tt.retryable, fetchErr.Retryable())
		})
	}
}

func TestURL_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, &Options{MaxBodyBytes: 10})
	require.NoError(t, err)
	assert.Len(t, result.Body, 10)
}

func TestURL_TransportErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := URL(context.Background(), url, nil)
	var fetchErr *Error
	require.True(t, errors.As(err, &fetchErr))
	assert.True(t, fetchErr.Retryable())
}

func TestExpandTemplate(t *testing.T) {
	assert.Equal(t, "https://api.example.com/trends?niche=pets&n=20",
		ExpandTemplate("https://api.example.com/trends?niche={niche}&n=20", "pets"))
	assert.Equal(t, "https://x.test/a+b", ExpandTemplate("https://x.test/{niche}", "a b"))
}
