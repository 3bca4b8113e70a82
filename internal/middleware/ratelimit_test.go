package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parallax/parallax-api/internal/pkg/ratelimit"
)

func TestRateLimitPerClient(t *testing.T) {
	limit := ratelimit.Limit{Store: ratelimit.NewMemoryStore(), Window: time.Minute, Max: 2}
	h := RateLimit(limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(xff string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/topup", nil)
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusOK, call("1.1.1.1").Code)
	require.Equal(t, http.StatusOK, call("1.1.1.1, 10.0.0.1").Code)

	w := call("1.1.1.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "60", w.Header().Get("Retry-After"))

	require.Equal(t, http.StatusOK, call("2.2.2.2").Code)
}

type brokenStore struct{}

func (brokenStore) Allow(context.Context, string, time.Duration, int) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := RateLimit(ratelimit.Limit{Store: brokenStore{}, Window: time.Minute, Max: 1})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/topup", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5123"
	require.Equal(t, "192.0.2.7", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	require.Equal(t, "198.51.100.2", ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	require.Equal(t, "203.0.113.9", ClientIP(req))
}
