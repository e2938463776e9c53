package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RandomTokenLength is the number of random bytes in opaque tokens (256 bits)
const RandomTokenLength = 32

// GenerateRandomToken returns RandomTokenLength crypto-random bytes, hex encoded
func GenerateRandomToken() (string, error) {
	randomBytes := make([]byte, RandomTokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}

// Signer issues HMAC-signed access tokens. It is used by the CLI and tests;
// production tokens are minted by the login service.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a signer. A zero ttl defaults to one hour.
func NewSigner(secret []byte, issuer string, ttl time.Duration) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("signer requires a secret")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Signer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for the given identity
func (s *Signer) Issue(tenantID string, userID int64, email string, role Role) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		TenantID: tenantID,
		UserID:   userID,
		Email:    email,
		Role:     role,
	}
	return s.Sign(claims)
}

// Sign signs arbitrary claims with HS256
func (s *Signer) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
