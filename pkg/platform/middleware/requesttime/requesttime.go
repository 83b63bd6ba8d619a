// Package requesttime pins one "now" per request so expiry checks, record
// timestamps and artifact names agree within a request.
package requesttime

import (
	"net/http"
	"time"

	"kycdesk/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
