// Package apierror defines the error taxonomy returned by the security layer
// and its JSON rendering.
//
// Every denial produced by a middleware or guard is an *Error carrying a
// machine-readable code and the HTTP status it maps to. Sentinels are compared
// with errors.Is, which matches on the code so that a sentinel refined with
// WithMessage or WithDetails still matches its origin.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Code is a machine-readable error code
type Code string

const (
	CodeUnauthorized            Code = "UNAUTHORIZED"
	CodeInvalidToken            Code = "INVALID_TOKEN"
	CodeMalformedClaims         Code = "MALFORMED_CLAIMS"
	CodeTenantAccessDenied      Code = "TENANT_ACCESS_DENIED"
	CodeInsufficientPermissions Code = "INSUFFICIENT_PERMISSIONS"
	CodeRateLimitExceeded       Code = "RATE_LIMIT_EXCEEDED"
	CodeAuthRateLimitExceeded   Code = "AUTH_RATE_LIMIT_EXCEEDED"
	CodeAPIRateLimitExceeded    Code = "API_RATE_LIMIT_EXCEEDED"
	CodeAccountLocked           Code = "ACCOUNT_LOCKED"
	CodeCSRFTokenMissing        Code = "CSRF_TOKEN_MISSING"
	CodeCSRFTokenInvalid        Code = "CSRF_TOKEN_INVALID"
	CodeSessionTerminated       Code = "SESSION_TERMINATED"
	CodeRequestTooLarge         Code = "REQUEST_TOO_LARGE"
	CodeInvalidContentType      Code = "INVALID_CONTENT_TYPE"
	CodeValidationFailed        Code = "VALIDATION_ERROR"
	CodeInternalError           Code = "INTERNAL_ERROR"
)

// Error is a structured API error
type Error struct {
	Code       Code                   `json:"code"`
	Status     int                    `json:"-"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	RetryAfter time.Duration          `json:"-"`
}

// Sentinel errors
var (
	Unauthenticated         = New(CodeUnauthorized, http.StatusUnauthorized, "No valid authorization token provided")
	InvalidToken            = New(CodeInvalidToken, http.StatusUnauthorized, "Invalid or expired token")
	MalformedClaims         = New(CodeMalformedClaims, http.StatusUnauthorized, "Token missing required tenant or user information")
	TenantAccessDenied      = New(CodeTenantAccessDenied, http.StatusForbidden, "User does not have access to this tenant")
	InsufficientPermissions = New(CodeInsufficientPermissions, http.StatusForbidden, "Insufficient permissions")
	RateLimitExceeded       = New(CodeRateLimitExceeded, http.StatusTooManyRequests, "Too many requests from this IP, please try again later.")
	AuthRateLimitExceeded   = New(CodeAuthRateLimitExceeded, http.StatusTooManyRequests, "Too many authentication attempts, please try again later.")
	APIRateLimitExceeded    = New(CodeAPIRateLimitExceeded, http.StatusTooManyRequests, "API rate limit exceeded, please slow down.")
	AccountLocked           = New(CodeAccountLocked, http.StatusTooManyRequests, "Too many failed attempts")
	CSRFTokenMissing        = New(CodeCSRFTokenMissing, http.StatusUnauthorized, "CSRF token is required")
	CSRFTokenInvalid        = New(CodeCSRFTokenInvalid, http.StatusForbidden, "Invalid CSRF token")
	SessionTerminated       = New(CodeSessionTerminated, http.StatusUnauthorized, "Session terminated")
	RequestTooLarge         = New(CodeRequestTooLarge, http.StatusRequestEntityTooLarge, "Request size exceeds maximum allowed limit")
	InvalidContentType      = New(CodeInvalidContentType, http.StatusBadRequest, "Content-Type must be application/json or multipart/form-data")
	ValidationFailed        = New(CodeValidationFailed, http.StatusBadRequest, "Request validation failed")
	InternalError           = New(CodeInternalError, http.StatusInternalServerError, "Internal server error")
)

// New creates a new API error
func New(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) clone() *Error {
	c := *e
	if e.Details != nil {
		c.Details = make(map[string]interface{}, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	return &c
}

// WithMessage returns a copy of the error with a different message
func (e *Error) WithMessage(message string) *Error {
	c := e.clone()
	c.Message = message
	return c
}

// WithMessagef returns a copy of the error with a formatted message
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetail returns a copy of the error with an extra detail field
func (e *Error) WithDetail(key string, value interface{}) *Error {
	c := e.clone()
	if c.Details == nil {
		c.Details = make(map[string]interface{})
	}
	c.Details[key] = value
	return c
}

// WithRetryAfter returns a copy of the error that advertises retry timing
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	c := e.clone()
	c.RetryAfter = d
	return c
}

// RetryAfterSeconds rounds the retry duration up to whole seconds
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

type body struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type errorBody struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	RetryAfter int                    `json:"retryAfter,omitempty"`
}

// WriteJSON renders the error as the standard JSON envelope
func (e *Error) WriteJSON(w http.ResponseWriter) {
	retry := e.RetryAfterSeconds()
	if retry > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retry))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	json.NewEncoder(w).Encode(body{
		Success: false,
		Error: errorBody{
			Code:       e.Code,
			Message:    e.Message,
			Details:    e.Details,
			RetryAfter: retry,
		},
	})
}

// From converts any error into an *Error. Errors outside the taxonomy become
// InternalError so that internal messages never reach the client.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return InternalError
}

// Write renders err to w using From
func Write(w http.ResponseWriter, err error) {
	From(err).WriteJSON(w)
}
