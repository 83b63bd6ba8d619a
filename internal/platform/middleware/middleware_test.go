package middleware

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycdesk/pkg/platform/middleware/metadata"
	"kycdesk/pkg/requestcontext"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRequestIDPropagatesHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rr.Header().Get("X-Request-ID"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRecoveryWritesEnvelope(t *testing.T) {
	h := Recovery(discardLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":false`)
	assert.NotContains(t, rr.Body.String(), "boom")
}

func TestContentTypeJSON(t *testing.T) {
	h := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestTimeoutSetsDeadline(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Context().Deadline()
		require.True(t, ok)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestRateLimitPerIP(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2)
	h := RateLimit(limiter, nil, discardLogger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/client/authenticateOTP", nil)
		req.RemoteAddr = ip + ":1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, do("203.0.113.1"))
	assert.Equal(t, http.StatusOK, do("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("203.0.113.1"))
	assert.Equal(t, http.StatusOK, do("203.0.113.2"), "other IPs keep their own budget")
}

func TestRateLimitIgnoresForwardedHeadersFromUntrustedPeer(t *testing.T) {
	trust, err := metadata.ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	limiter := NewIPRateLimiter(0.001, 1)
	h := RateLimit(limiter, trust, discardLogger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	limited := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/client/authenticateOTP", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 49, limited, "rotating headers must not buy fresh buckets")
}

func TestRateLimitKeysOnClientBehindTrustedProxy(t *testing.T) {
	trust, err := metadata.ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	limiter := NewIPRateLimiter(0.001, 1)
	h := RateLimit(limiter, trust, discardLogger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/client/auth", nil)
		req.RemoteAddr = "10.0.0.5:443"
		req.Header.Set("X-Forwarded-For", client)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, do("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("203.0.113.1"))
	assert.Equal(t, http.StatusOK, do("203.0.113.2"), "clients behind the proxy keep separate budgets")
}

func TestIPRateLimiterSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(1, 1)
	limiter.clock = func() time.Time { return now }

	limiter.Allow("198.51.100.9")
	now = now.Add(10 * time.Minute)
	limiter.Sweep()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Empty(t, limiter.buckets)
}
