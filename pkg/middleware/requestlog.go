package middleware

import (
	"net/http"
	"time"

	"github.com/Aniket2927/Renx-sub004/pkg/audit"
	"github.com/Aniket2927/Renx-sub004/pkg/httputil"
)

// TenantRequestLog records an api_request audit event for every
// authenticated request once the response status is known
func TenantRequestLog(deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := httputil.NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			if GetTenantID(r) == "" {
				return
			}
			severity := audit.SeverityLow
			if rw.Status() >= 400 {
				severity = audit.SeverityMedium
			}
			deps.emit(r, &audit.Event{
				Type:     audit.EventAPIRequest,
				Action:   string(audit.EventAPIRequest),
				Resource: r.URL.Path,
				Details: map[string]interface{}{
					"method":     r.Method,
					"statusCode": rw.Status(),
					"duration":   time.Since(start).Milliseconds(),
				},
				Severity: severity,
			})
		})
	}
}
