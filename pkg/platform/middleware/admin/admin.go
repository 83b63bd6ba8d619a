// Package admin guards operator-only routes with a shared secret header.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/httputil"
	"kycdesk/pkg/requestcontext"
)

const TokenHeader = "X-Admin-Token"

// RequireAdminToken rejects requests whose X-Admin-Token differs from
// expectedToken. An empty expectedToken rejects everything.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(TokenHeader)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "admin token required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
