package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycdesk/pkg/requestcontext"
)

func TestClientIP(t *testing.T) {
	trust, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.50"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		trust  *ProxyTrust
		header map[string]string
		remote string
		want   string
	}{
		{name: "untrusted peer ignores forwarded for", trust: trust, header: map[string]string{"X-Forwarded-For": "198.51.100.1"}, remote: "203.0.113.9:5555", want: "203.0.113.9"},
		{name: "untrusted peer ignores real ip", trust: trust, header: map[string]string{"X-Real-IP": "198.51.100.1"}, remote: "203.0.113.9:5555", want: "203.0.113.9"},
		{name: "no trust configured", trust: nil, header: map[string]string{"X-Forwarded-For": "198.51.100.1"}, remote: "10.0.0.2:1234", want: "10.0.0.2"},
		{name: "trusted peer single hop", trust: trust, header: map[string]string{"X-Forwarded-For": "203.0.113.7"}, remote: "10.0.0.2:1234", want: "203.0.113.7"},
		{name: "spoofed leftmost hop is skipped", trust: trust, header: map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.7, 10.1.1.1"}, remote: "192.0.2.50:443", want: "203.0.113.7"},
		{name: "garbled hop stops the walk", trust: trust, header: map[string]string{"X-Forwarded-For": "not-an-ip, 10.1.1.1"}, remote: "10.0.0.2:1234", want: "10.1.1.1"},
		{name: "trusted peer real ip", trust: trust, header: map[string]string{"X-Real-IP": " 198.51.100.4 "}, remote: "10.0.0.2:1234", want: "198.51.100.4"},
		{name: "remote addr ipv6", trust: trust, remote: "[::1]:5678", want: "::1"},
		{name: "empty remote addr", trust: trust, remote: "", want: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, tt.trust.ClientIP(req))
		})
	}
}

func TestParseTrustedProxiesRejectsGarbage(t *testing.T) {
	_, err := ParseTrustedProxies([]string{"10.0.0.0/8", "proxy.internal"})
	assert.Error(t, err)

	trust, err := ParseTrustedProxies([]string{" ", ""})
	require.NoError(t, err)
	assert.Empty(t, trust.prefixes)
}

func TestClientMetadataStoresValues(t *testing.T) {
	var gotIP, gotUA string
	h := ClientMetadata(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotUA = requestcontext.UserAgent(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.77")
	req.Header.Set("User-Agent", "test-agent")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "192.0.2.1", gotIP)
	assert.Equal(t, "test-agent", gotUA)
}
