package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Aniket2927/Renx-sub004/pkg/apierror"
)

// Claims are the JWT claims expected on every API request
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenantId"`
	UserID   int64  `json:"userId"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role,omitempty"`
}

// VerifierConfig configures credential verification.
// Exactly one of Secret or PublicKeyPEM should be set.
type VerifierConfig struct {
	// Secret is the shared HMAC key
	Secret []byte
	// PublicKeyPEM is an RSA or ECDSA public key for asymmetric tokens
	PublicKeyPEM []byte
	// Issuer and Audience are enforced when non-empty
	Issuer   string
	Audience string
	// Leeway tolerates clock skew on exp/nbf/iat
	Leeway time.Duration
}

// Verifier validates bearer tokens and extracts typed claims
type Verifier struct {
	keyFunc jwt.Keyfunc
	opts    []jwt.ParserOption
}

// NewVerifier creates a verifier from config
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	var (
		key     interface{}
		methods []string
	)

	switch {
	case len(cfg.PublicKeyPEM) > 0:
		if rsaKey, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM); err == nil {
			key = rsaKey
			methods = []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}
		} else if ecKey, ecErr := jwt.ParseECPublicKeyFromPEM(cfg.PublicKeyPEM); ecErr == nil {
			key = ecKey
			methods = []string{"ES256", "ES384", "ES512"}
		} else {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
	case len(cfg.Secret) > 0:
		key = cfg.Secret
		methods = []string{"HS256", "HS384", "HS512"}
	default:
		return nil, errors.New("verifier requires a secret or a public key")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods(methods)}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}

	return &Verifier{
		keyFunc: func(*jwt.Token) (interface{}, error) { return key, nil },
		opts:    opts,
	}, nil
}

// ExtractBearer returns the token from an "Authorization: Bearer <token>" header
func ExtractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apierror.Unauthenticated
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", apierror.Unauthenticated
	}
	return strings.TrimSpace(parts[1]), nil
}

// Verify parses and validates a token string
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc, v.opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apierror.InvalidToken, err)
	}
	if !token.Valid {
		return nil, apierror.InvalidToken
	}

	if claims.TenantID == "" || claims.UserID == 0 {
		return nil, apierror.MalformedClaims
	}
	if claims.Role == "" {
		claims.Role = RoleUser
	}
	return claims, nil
}

// VerifyRequest extracts and verifies the bearer token on r
func (v *Verifier) VerifyRequest(r *http.Request) (*Claims, error) {
	token, err := ExtractBearer(r)
	if err != nil {
		return nil, err
	}
	return v.Verify(token)
}
