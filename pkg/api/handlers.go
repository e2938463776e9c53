package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Aniket2927/Renx-sub004/pkg/apierror"
	"github.com/Aniket2927/Renx-sub004/pkg/auth"
	"github.com/Aniket2927/Renx-sub004/pkg/contextkeys"
	"github.com/Aniket2927/Renx-sub004/pkg/httputil"
	"github.com/Aniket2927/Renx-sub004/pkg/middleware"
	"github.com/Aniket2927/Renx-sub004/pkg/observability"
)

// CSRFTokenResponse is returned by GET /api/csrf-token
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrfToken"`
	ExpiresIn int    `json:"expiresIn"`
}

// issueCSRFToken handles GET /api/csrf-token. The token is bound to the
// caller's session; callers without one get a fresh session cookie. A
// previous token sent in X-CSRF-Token is retired.
func (s *Server) issueCSRFToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := contextkeys.GetSessionID(ctx)
	if sessionID == "" {
		sessionID = httputil.SessionID(r)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     httputil.SessionCookie,
			Value:    sessionID,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.opts.Config.IsProduction(),
			SameSite: http.SameSiteStrictMode,
		})
	}

	if old := r.Header.Get(middleware.CSRFHeader); old != "" {
		if err := s.opts.CSRF.Consume(ctx, old); err != nil {
			s.logger.WithError(err).Warn("Failed to retire previous CSRF token")
		}
	}

	token, err := s.opts.CSRF.Generate(ctx, sessionID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to issue CSRF token")
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set(middleware.CSRFHeader, token)
	httputil.WriteJSON(w, http.StatusOK, CSRFTokenResponse{
		CSRFToken: token,
		ExpiresIn: int(s.opts.CSRF.TTL().Seconds()),
	})
}

// VerifyResponse is returned by GET /api/auth/verify
type VerifyResponse struct {
	Valid       bool       `json:"valid"`
	TenantID    string     `json:"tenantId"`
	TenantName  string     `json:"tenantName,omitempty"`
	UserID      int64      `json:"userId"`
	Email       string     `json:"email,omitempty"`
	Role        auth.Role  `json:"role"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
}

// verifyToken handles GET /api/auth/verify. A valid token without a session
// starts one fingerprinted with the caller's address and user agent.
func (s *Server) verifyToken(w http.ResponseWriter, r *http.Request) {
	ctx, err := s.auth.Resolve(r.Context(), r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claims := auth.ClaimsFrom(ctx)
	tc := auth.TenantContextFrom(ctx)

	resp := VerifyResponse{
		Valid:       true,
		TenantID:    tc.TenantID,
		TenantName:  tc.TenantName,
		UserID:      claims.UserID,
		Email:       claims.Email,
		Role:        tc.Role(),
		Permissions: permissionNames(tc.Permissions),
		SessionID:   contextkeys.GetSessionID(ctx),
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time.UTC()
		resp.ExpiresAt = &exp
	}

	if resp.SessionID == "" && s.opts.Sessions != nil {
		sess, err := s.opts.Sessions.Create(ctx, tc.TenantID, claims.UserID, httputil.ClientIP(r), r.UserAgent())
		if err != nil {
			// The token is still valid; the client can retry for a session
			s.logger.WithError(err).Warn("Failed to create session")
		} else {
			resp.SessionID = sess.ID
			w.Header().Set(httputil.SessionHeader, sess.ID)
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func permissionNames(perms []auth.Permission) []string {
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.String())
	}
	return names
}

// getIdentity handles GET /api/me
func (s *Server) getIdentity(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, tenantContext(r))
}

// OrderRequest is the body of POST /api/trading/orders. TenantID and UserID
// are overwritten from the authenticated identity before the handler runs.
type OrderRequest struct {
	TenantID  string  `json:"tenantId"`
	UserID    int64   `json:"userId"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Quantity  float64 `json:"quantity"`
	OrderType string  `json:"orderType,omitempty"`
	Price     float64 `json:"price,omitempty"`
}

// Order is an accepted order
type Order struct {
	OrderRequest
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	AcceptedAt time.Time `json:"acceptedAt"`
}

func (o OrderRequest) validate() error {
	if strings.TrimSpace(o.Symbol) == "" {
		return apierror.ValidationFailed.WithDetail("field", "symbol")
	}
	switch strings.ToLower(o.Side) {
	case "buy", "sell":
	default:
		return apierror.ValidationFailed.WithDetail("field", "side")
	}
	if o.Quantity <= 0 {
		return apierror.ValidationFailed.WithDetail("field", "quantity")
	}
	return nil
}

// acceptOrder handles POST /api/trading/orders
func (s *Server) acceptOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		if httputil.IsBodyTooLarge(err) {
			httputil.WriteError(w, apierror.RequestTooLarge)
			return
		}
		httputil.WriteError(w, apierror.ValidationFailed.WithMessage("Invalid JSON body"))
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	order := Order{
		OrderRequest: req,
		ID:           uuid.NewString(),
		Status:       "accepted",
		AcceptedAt:   s.now().UTC(),
	}
	order.Side = strings.ToLower(order.Side)

	observability.FromContext(r.Context()).WithFields(logrus.Fields{
		"order_id": order.ID,
		"symbol":   order.Symbol,
		"side":     order.Side,
	}).Info("Order accepted")

	httputil.WriteJSON(w, http.StatusAccepted, order)
}

// invalidatePermissions handles
// POST /api/admin/tenants/{tenantId}/users/{userId}/permissions/invalidate.
// Admins may only act on their own tenant.
func (s *Server) invalidatePermissions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantID := vars["tenantId"]
	userID, err := strconv.ParseInt(vars["userId"], 10, 64)
	if err != nil || userID <= 0 {
		httputil.WriteError(w, apierror.ValidationFailed.WithDetail("field", "userId"))
		return
	}

	tc := tenantContext(r)
	if tenantID != tc.TenantID && !tc.HasRole(auth.RoleSuperAdmin) {
		httputil.WriteError(w, apierror.TenantAccessDenied)
		return
	}

	s.opts.Cache.Invalidate(tenantID, userID)

	observability.FromContext(r.Context()).WithFields(logrus.Fields{
		"target_tenant_id": tenantID,
		"target_user_id":   userID,
	}).Info("Permission cache invalidated")

	httputil.WriteSuccess(w, map[string]interface{}{
		"tenantId": tenantID,
		"userId":   userID,
	})
}
