package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server. Write and idle timeouts leave room for the
// verification bundle upload, which streams up to four 25MB files.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
