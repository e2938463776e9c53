package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Aniket2927/Renx-sub004/pkg/apierror"
	"github.com/Aniket2927/Renx-sub004/pkg/httputil"
)

// Field names rewritten by TenantIsolation
const (
	TenantIDField = "tenantId"
	UserIDField   = "userId"
)

var errTenantRequired = apierror.Unauthenticated.WithMessage("Tenant context required")

// TenantIsolation pins tenant-scoped request values to the authenticated
// identity. The tenantId query parameter is always set to the caller's
// tenant, and a JSON object body gets its tenantId and userId overwritten.
// Running it twice has the same effect as running it once.
func TenantIsolation(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "tenant_isolation")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := GetTenantID(r)
			userID, _ := GetUserID(r)
			if tenantID == "" {
				httputil.WriteError(w, errTenantRequired)
				return
			}

			q := r.URL.Query()
			q.Set(TenantIDField, tenantID)
			r.URL.RawQuery = q.Encode()

			body, ok, err := httputil.PeekJSONObject(r)
			if err != nil {
				if httputil.IsBodyTooLarge(err) {
					httputil.WriteError(w, apierror.RequestTooLarge)
					return
				}
				logger.WithError(err).Error("Failed to read request body")
				httputil.WriteError(w, apierror.InternalError.WithMessage("Internal tenant isolation error"))
				return
			}
			if ok {
				body[TenantIDField] = tenantID
				body[UserIDField] = userID
				if err := httputil.ReplaceJSONBody(r, body); err != nil {
					logger.WithError(err).Error("Failed to rewrite request body")
					httputil.WriteError(w, apierror.InternalError.WithMessage("Internal tenant isolation error"))
					return
				}
			}

			logger.WithFields(logrus.Fields{
				"tenant_id": tenantID,
				"user_id":   userID,
				"body":      ok,
			}).Debug("Request pinned to tenant")
			next.ServeHTTP(w, r)
		})
	}
}
