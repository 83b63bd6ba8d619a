package testutil

import (
	"net/http"
	"time"

	"kycdesk/pkg/requestcontext"
)

// WithCaller attaches an authenticated caller to the request, as the session
// gate would after validating a credential.
func WithCaller(req *http.Request, caller requestcontext.Caller) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), caller))
}

// WithClientCaller is WithCaller for a client session bound to codeID.
func WithClientCaller(req *http.Request, codeID, tokenID string) *http.Request {
	return WithCaller(req, requestcontext.Caller{
		Subject:   codeID,
		Role:      "client",
		TokenID:   tokenID,
		ExpiresAt: time.Now().Add(time.Hour),
	})
}
