package middleware

import (
	"net/http"
	"strings"
)

// ContentSecurityPolicy is sent on every response by SecurityHeaders
var ContentSecurityPolicy = strings.Join([]string{
	"default-src 'self'",
	"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com",
	"font-src 'self' https://fonts.gstatic.com",
	"img-src 'self' data: https:",
	"script-src 'self' 'unsafe-eval'",
	"connect-src 'self' wss: ws:",
	"object-src 'none'",
	"media-src 'self'",
	"frame-src 'none'",
}, "; ")

var securityHeaders = map[string]string{
	"Content-Security-Policy":   ContentSecurityPolicy,
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains; preload",
	"X-Frame-Options":           "DENY",
	"X-Content-Type-Options":    "nosniff",
	"X-XSS-Protection":          "1; mode=block",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
	"X-DNS-Prefetch-Control":    "off",
	"X-Download-Options":        "noopen",
}

// SecurityHeaders sets the browser hardening headers and hides the server
// implementation
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for k, v := range securityHeaders {
			h.Set(k, v)
		}
		h.Del("X-Powered-By")
		next.ServeHTTP(w, r)
	})
}
