package bookmaker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatio(t *testing.T) {
	assert.InDelta(t, 0.75, ratio("abcd", "bcde"), 1e-9)
	assert.InDelta(t, 1.0, ratio("", ""), 1e-9)
	assert.InDelta(t, 0.0, ratio("abc", "xyz"), 1e-9)
	assert.InDelta(t, 1.0, ratio("arsenal", "arsenal"), 1e-9)
	assert.InDelta(t, 8.0/9.0, ratio("abxcd", "abcd"), 1e-9)
	assert.InDelta(t, 1.0, ratio("köln", "köln"), 1e-9, "compares runes, not bytes")
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"netherlands", "eredivisie"}, tokenize("Dutch Eredivisie"))
	assert.Equal(t, []string{"atletico", "madrid"}, tokenize("Atlético-Madrid"))
	assert.Equal(t, []string{"1", "fc", "koln"}, tokenize("1. FC Köln"))
}

func TestTokenSetRatio_NoOverlap(t *testing.T) {
	assert.Zero(t, tokenSetRatio([]string{"a"}, []string{"b"}))
}

func TestJSONClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewJSONClient(nil, srv.URL+"/")
	c.wait = func(context.Context, int) {}
	c.SetHeader("X-Api-Key", "secret")

	var out struct{ OK bool }
	require.NoError(t, c.Get(context.Background(), "/odds", url.Values{"page": {"1"}}, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestJSONClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewJSONClient(srv.Client(), srv.URL)
	c.wait = func(context.Context, int) {}

	err := c.Get(context.Background(), "x", nil, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestJSONClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("token expired"))
	}))
	defer srv.Close()

	c := NewJSONClient(srv.Client(), srv.URL)
	c.wait = func(context.Context, int) {}

	err := c.Post(context.Background(), "bets", map[string]any{"stake": 10}, nil)
	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "token expired")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCountsAsFailure(t *testing.T) {
	assert.False(t, countsAsFailure(nil))
	assert.False(t, countsAsFailure(context.Canceled))
	assert.False(t, countsAsFailure(ErrNotSupported))
	assert.False(t, countsAsFailure(ErrCircuitOpen))
	assert.True(t, countsAsFailure(context.DeadlineExceeded))
	assert.True(t, countsAsFailure(&StatusError{Code: 500}))
}
