package middleware

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Aniket2927/Renx-sub004/pkg/apierror"
	"github.com/Aniket2927/Renx-sub004/pkg/audit"
	"github.com/Aniket2927/Renx-sub004/pkg/contextkeys"
	"github.com/Aniket2927/Renx-sub004/pkg/csrf"
	"github.com/Aniket2927/Renx-sub004/pkg/httputil"
)

const (
	// CSRFHeader carries the token on state-changing requests
	CSRFHeader = "X-CSRF-Token"
	// CSRFBodyField is the fallback JSON body field
	CSRFBodyField = "_csrf"
)

// CSRFMiddleware requires a valid CSRF token on state-changing requests
// that are not bearer-authenticated API calls
type CSRFMiddleware struct {
	tokens   *csrf.Manager
	verifier TokenVerifier
	deps     Deps
	logger   logrus.FieldLogger
}

// NewCSRFMiddleware creates a CSRF middleware. verifier may be nil, in which
// case only requests already authenticated upstream skip the check.
func NewCSRFMiddleware(tokens *csrf.Manager, verifier TokenVerifier, deps Deps) *CSRFMiddleware {
	return &CSRFMiddleware{
		tokens:   tokens,
		verifier: verifier,
		deps:     deps,
		logger:   deps.logger("csrf"),
	}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// bearerAPICall reports whether r is an /api/ request with a verified
// bearer token
func (m *CSRFMiddleware) bearerAPICall(r *http.Request) bool {
	if !strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	if GetClaims(r) != nil {
		return true
	}
	if m.verifier == nil || r.Header.Get("Authorization") == "" {
		return false
	}
	_, err := m.verifier.VerifyRequest(r)
	return err == nil
}

func requestToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(CSRFHeader)); token != "" {
		return token
	}
	body, ok, err := httputil.PeekJSONObject(r)
	if err != nil || !ok {
		return ""
	}
	token, _ := body[CSRFBodyField].(string)
	return token
}

// Handler wraps an HTTP handler with CSRF validation
func (m *CSRFMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if safeMethod(r.Method) || m.bearerAPICall(r) {
			next.ServeHTTP(w, r)
			return
		}

		token := requestToken(r)
		if token == "" {
			m.reject(w, r, "missing", apierror.CSRFTokenMissing)
			return
		}

		sessionID := contextkeys.GetSessionID(r.Context())
		if sessionID == "" {
			sessionID = httputil.SessionID(r)
		}
		valid, err := m.tokens.Validate(r.Context(), token, sessionID)
		if err != nil {
			m.logger.WithError(err).Error("CSRF token lookup failed")
			httputil.WriteError(w, apierror.InternalError)
			return
		}
		if !valid {
			m.reject(w, r, "invalid", apierror.CSRFTokenInvalid)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *CSRFMiddleware) reject(w http.ResponseWriter, r *http.Request, reason string, err *apierror.Error) {
	m.deps.Metrics.CSRFFailure(reason)
	m.logger.WithFields(logrus.Fields{
		"reason": reason,
		"path":   r.URL.Path,
		"ip":     httputil.ClientIP(r),
	}).Warn("CSRF validation failed")
	m.deps.emitSync(r, &audit.Event{
		Type:     audit.EventCSRFFailure,
		Resource: r.URL.Path,
		Details: map[string]interface{}{
			"reason": reason,
			"method": r.Method,
		},
		Severity: audit.SeverityMedium,
	})
	httputil.WriteError(w, err)
}
