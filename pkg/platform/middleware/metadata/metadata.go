package metadata

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"kycdesk/pkg/requestcontext"
)

// ProxyTrust lists the peers whose forwarding headers are believed. A nil
// ProxyTrust trusts nobody and every request is keyed on its direct peer.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies accepts CIDRs ("10.0.0.0/8") and bare addresses.
func ParseTrustedProxies(entries []string) (*ProxyTrust, error) {
	t := &ProxyTrust{}
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			t.prefixes = append(t.prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		a = a.Unmap()
		t.prefixes = append(t.prefixes, netip.PrefixFrom(a, a.BitLen()))
	}
	return t, nil
}

func (t *ProxyTrust) trusts(a netip.Addr) bool {
	if t == nil {
		return false
	}
	a = a.Unmap()
	for _, p := range t.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// ClientMetadata extracts client IP address and User-Agent from the request
// and stores them in the request context. Apply it early in the chain.
func ClientMetadata(trust *ProxyTrust) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithClientMetadata(r.Context(), trust.ClientIP(r), r.Header.Get("User-Agent"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the address of the client. Forwarding headers are only
// read when the direct peer is a trusted proxy; X-Forwarded-For is walked
// from the right and the first untrusted hop wins.
func (t *ProxyTrust) ClientIP(r *http.Request) string {
	peer := PeerIP(r)
	peerAddr, err := netip.ParseAddr(peer)
	if err != nil || !t.trusts(peerAddr) {
		return peer
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hops = append(hops, h)
			}
		}
	}
	if len(hops) > 0 {
		client := peer
		for i := len(hops) - 1; i >= 0; i-- {
			a, err := netip.ParseAddr(hops[i])
			if err != nil {
				// a garbled hop was written by someone we do not trust
				return client
			}
			client = a.Unmap().String()
			if !t.trusts(a) {
				return client
			}
		}
		return client
	}

	if a, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return a.Unmap().String()
	}
	return peer
}

// PeerIP is the host part of the connection's remote address.
func PeerIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
