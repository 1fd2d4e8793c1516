package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/pkg/platform/middleware/metadata"
	"registrar/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("redis down")
}

func newRequest(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/accounts/register", nil)
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, "test"))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddleware_Limit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := NewMetrics(prometheus.NewRegistry())
	h := New(NewInMemoryStore(), 2, time.Minute, logger, WithMetrics(metrics)).Limit(ScopeRegister)(okHandler())

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, newRequest("10.0.0.1"))
		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newRequest("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "rate_limit_exceeded")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Rejected.WithLabelValues(ScopeRegister)))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, newRequest("10.0.0.2"))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestMiddleware_ForwardedHeadersDoNotResetBudget(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := New(NewInMemoryStore(), 2, time.Minute, logger)
	h := metadata.ClientMetadata(nil)(limiter.Limit(ScopeRegister)(okHandler()))

	allowed := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/accounts/register", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code == http.StatusNoContent {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)

	t.Run("trusted proxy forwards distinct clients", func(t *testing.T) {
		trusted, err := metadata.ParseTrustedProxies([]string{"10.0.0.0/8"})
		require.NoError(t, err)
		h := metadata.ClientMetadata(trusted)(New(NewInMemoryStore(), 1, time.Minute, logger).Limit(ScopeRegister)(okHandler()))

		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/accounts/register", nil)
			req.RemoteAddr = "10.0.0.2:40000"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusNoContent, rr.Code)
		}
	})
}

func TestMiddleware_FailsOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := NewMetrics(prometheus.NewRegistry())
	h := New(failingStore{}, 1, time.Minute, logger, WithMetrics(metrics)).Limit(ScopeChallenge)(okHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newRequest("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreErrors))
}

func TestMiddleware_Disabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, mw := range []*Middleware{
		New(failingStore{}, 1, time.Minute, logger, WithDisabled(true)),
		New(failingStore{}, 0, time.Minute, logger),
	} {
		rr := httptest.NewRecorder()
		mw.Limit(ScopeRegister)(okHandler()).ServeHTTP(rr, newRequest("10.0.0.1"))
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	}
}
