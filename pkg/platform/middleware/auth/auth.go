// Package auth is the session gate shared by the admin and client route groups.
// One RequireAuth middleware is parameterized by where the credential is read
// from and which role it must carry.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/httputil"
	"kycdesk/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// TokenRevocationChecker defines the interface for checking if tokens are revoked
type TokenRevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTClaims represents the claims the gate needs from a validated token.
type JWTClaims struct {
	Subject   string
	Name      string
	Email     string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

// TokenSource extracts a raw credential from a request. Empty means absent.
type TokenSource func(r *http.Request) string

// FromHeader reads a bearer token, or the bare value of the Authorization header.
func FromHeader() TokenSource {
	return func(r *http.Request) string {
		h := strings.TrimSpace(r.Header.Get("Authorization"))
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
		return h
	}
}

// FromCookie reads the named cookie.
func FromCookie(name string) TokenSource {
	return func(r *http.Request) string {
		c, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return c.Value
	}
}

type gate struct {
	sources        []TokenSource
	role           string
	missingMessage string
}

type Option func(*gate)

// WithSources sets the token sources, tried in order. Defaults to FromHeader.
func WithSources(sources ...TokenSource) Option {
	return func(g *gate) {
		if len(sources) > 0 {
			g.sources = sources
		}
	}
}

// RequireRole rejects tokens whose role claim differs.
func RequireRole(role string) Option {
	return func(g *gate) {
		g.role = role
	}
}

// WithMissingMessage overrides the message returned when no token is presented.
func WithMissingMessage(msg string) Option {
	return func(g *gate) {
		g.missingMessage = msg
	}
}

// RequireAuth rejects requests without a credential (401) or with an invalid,
// expired, revoked or wrong-role credential (403). Accepted callers are
// attached to the context as a requestcontext.Caller.
func RequireAuth(validator JWTValidator, revocationChecker TokenRevocationChecker, logger *slog.Logger, opts ...Option) func(http.Handler) http.Handler {
	g := &gate{
		sources:        []TokenSource{FromHeader()},
		missingMessage: "Authentication Required",
	}
	for _, opt := range opts {
		opt(g)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token := ""
			for _, src := range g.sources {
				if token = src(r); token != "" {
					break
				}
			}
			if token == "" {
				logger.WarnContext(ctx, "unauthenticated access - missing token",
					"path", r.URL.Path,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, g.missingMessage))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "You are not authorized"))
				return
			}

			if g.role != "" && claims.Role != g.role {
				logger.WarnContext(ctx, "unauthorized access - role mismatch",
					"required_role", g.role,
					"token_role", claims.Role,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "You are not authorized"))
				return
			}

			if revocationChecker != nil && claims.JTI != "" {
				revoked, err := revocationChecker.IsRevoked(ctx, claims.JTI)
				if err != nil {
					logger.ErrorContext(ctx, "failed to check token revocation",
						"error", err,
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate token"))
					return
				}
				if revoked {
					logger.WarnContext(ctx, "unauthorized access - token revoked",
						"jti", claims.JTI,
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Session has ended"))
					return
				}
			}

			ctx = requestcontext.WithPrincipal(ctx, requestcontext.Caller{
				Subject:   claims.Subject,
				Name:      claims.Name,
				Email:     claims.Email,
				Role:      claims.Role,
				TokenID:   claims.JTI,
				ExpiresAt: claims.ExpiresAt,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFrom returns the first credential found by the sources, for handlers
// that echo the presented token back to the caller.
func TokenFrom(r *http.Request, sources ...TokenSource) string {
	for _, src := range sources {
		if t := src(r); t != "" {
			return t
		}
	}
	return ""
}
