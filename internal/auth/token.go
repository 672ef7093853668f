package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/service-portal/internal/domain"
)

// TokenIssuer is the iss claim on every access token.
const TokenIssuer = "service-portal"

// ErrInvalidToken wraps every parse or validation failure.
var ErrInvalidToken = errors.New("invalid access token")

// TokenManager signs and verifies HS256 access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenManager builds a manager. A non-positive ttl means one hour.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    time.Duration(ttlMinutes) * time.Minute,
		now:    time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(TokenIssuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// Claims is the token payload: the user ID in sub plus the role at issue time.
// Authorization re-reads the role from the user record.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for userID.
func (tm *TokenManager) GenerateToken(userID string, role domain.Role) (string, domain.Token, error) {
	meta := domain.Token{
		ID:        uuid.NewString(),
		SubjectID: userID,
		Role:      role,
		IssuedAt:  tm.now().UTC().Truncate(time.Second),
	}
	meta.ExpiresAt = meta.IssuedAt.Add(tm.ttl)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        meta.ID,
			Issuer:    TokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(meta.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(meta.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", domain.Token{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, meta, nil
}

// ParseToken verifies signature, issuer and expiry and returns the claims.
func (tm *TokenManager) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := tm.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return tm.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
