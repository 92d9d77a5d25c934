package log

import (
	"net"
	"net/http"
	"strings"
)

const headerForwardedFor = "X-Forwarded-For"

// ClientIP resolves the caller address of r: the first X-Forwarded-For
// entry when present, otherwise the host part of RemoteAddr. It returns
// an empty string when neither is available.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xff := r.Header.Get(headerForwardedFor); xff != "" {
		if ip := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0]); ip != "" {
			return ip
		}
	}
	if r.RemoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
