package httputil

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ClientIP extracts the real client IP from request headers, preferring
// proxy headers over the socket address:
//  1. X-Forwarded-For (first IP in the comma-separated list)
//  2. X-Real-IP
//  3. RemoteAddr (port stripped)
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ParseIntParam parses an integer query parameter, falling back to
// defaultVal when empty or invalid.
func ParseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return defaultVal
}
