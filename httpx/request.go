package httpx

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the originating address, preferring the first
// X-Forwarded-For hop when a proxy is in front.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
