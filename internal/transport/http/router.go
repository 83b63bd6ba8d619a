// Package httptransport composes the route groups and the middleware that
// gates each of them.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	adminhandler "kycdesk/internal/admin/handler"
	jwttoken "kycdesk/internal/jwt_token"
	kychandler "kycdesk/internal/kyc/handler"
	"kycdesk/internal/platform/metrics"
	"kycdesk/internal/platform/middleware"
	uploadhandler "kycdesk/internal/upload/handler"
	"kycdesk/pkg/platform/httputil"
	adminmw "kycdesk/pkg/platform/middleware/admin"
	authmw "kycdesk/pkg/platform/middleware/auth"
	"kycdesk/pkg/platform/middleware/metadata"
	"kycdesk/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Tokens      authmw.JWTValidator
	Revocations authmw.TokenRevocationChecker
	AuthLimiter *middleware.IPRateLimiter

	// TrustedProxies may set X-Forwarded-For; nil keys everything on the peer.
	TrustedProxies *metadata.ProxyTrust

	KYC     *kychandler.Handler
	Uploads *uploadhandler.Handler
	Admin   *adminhandler.Handler

	OpsToken       string
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
}

const sessionMissingMessage = "Invalid Session"

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(metadata.ClientMetadata(d.TrustedProxies))
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(d.Logger, d.Metrics))

	r.Get("/healthz", healthHandler(d.HealthChecks))
	r.Handle("/metrics", metrics.Handler())

	limited := middleware.RateLimit(d.AuthLimiter, d.TrustedProxies, d.Logger, d.Metrics)
	clientSession := authmw.RequireAuth(d.Tokens, d.Revocations, d.Logger,
		authmw.WithSources(authmw.FromCookie(kychandler.SessionCookie), authmw.FromHeader()),
		authmw.RequireRole(jwttoken.RoleClient),
		authmw.WithMissingMessage(sessionMissingMessage),
	)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Timeout(d.RequestTimeout))
		r.Use(middleware.ContentTypeJSON)
		r.With(limited).Group(d.Admin.Register)
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(d.Tokens, d.Revocations, d.Logger,
				authmw.RequireRole(jwttoken.RoleAdmin),
			))
			d.KYC.RegisterAdmin(r)
		})
	})

	r.Route("/client", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(d.RequestTimeout))
			r.Use(middleware.ContentTypeJSON)

			r.With(limited).Post("/authenticateOTP", d.KYC.HandleAuthenticate)
			// Re-checking a finalized code must report it as used, so this
			// route does not consult the revocation list.
			r.With(limited, authmw.RequireAuth(d.Tokens, nil, d.Logger,
				authmw.WithSources(authmw.FromCookie(kychandler.SessionCookie)),
				authmw.RequireRole(jwttoken.RoleClient),
				authmw.WithMissingMessage(sessionMissingMessage),
			)).Post("/auth", d.KYC.HandleReauthenticate)

			r.With(clientSession).Group(d.KYC.RegisterClient)
		})
		r.With(clientSession).Group(d.Uploads.Register)
	})

	r.Route("/ops", func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(d.OpsToken, d.Logger))
		r.Use(middleware.ContentTypeJSON)
		d.Admin.RegisterOps(r)
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var failing []string
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failing = append(failing, name)
			}
		}
		if len(failing) > 0 {
			sort.Strings(failing)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "failing": failing})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
