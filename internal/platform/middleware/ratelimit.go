package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"kycdesk/internal/platform/metrics"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/httputil"
	"kycdesk/pkg/platform/middleware/metadata"
	"kycdesk/pkg/requestcontext"
)

// IPRateLimiter hands out one token bucket per client IP and forgets idle IPs.
type IPRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	clock   func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter allows perSecond sustained requests with the given burst per IP.
func NewIPRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: 5 * time.Minute,
		clock:   time.Now,
	}
}

// Allow consumes a token for ip.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than the idle TTL.
func (l *IPRateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.clock().Add(-l.idleTTL)
	for ip, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}

// RateLimit rejects requests over the per-IP budget with 429. Buckets are
// keyed on the direct peer unless it is one of the trusted proxies.
func RateLimit(limiter *IPRateLimiter, trust *metadata.ProxyTrust, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := trust.ClientIP(r)
			if !limiter.Allow(ip) {
				ctx := r.Context()
				logger.WarnContext(ctx, "rate limit exceeded",
					"client_ip", ip,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				m.IncrementRateLimited()
				w.Header().Set("Retry-After", "1")
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "Too many attempts, please try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
