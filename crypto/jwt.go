package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lhccong/fish-island-backend-sub001/domain"
)

// tokenIssuer is stamped into every session token; tokens minted for other
// services are rejected even when they share the signing key.
const tokenIssuer = "fish-island"

// clockSkew tolerates small drift between the auth service and game nodes.
const clockSkew = 30 * time.Second

// sessionClaims is unexported; fields stay exported for JSON serialization.
type sessionClaims struct {
	Id string `json:"id"`
	jwt.RegisteredClaims
}

// JWTManager verifies the session tokens the platform's auth service issues.
// Generate exists for local development and tests; production tokens come
// from the platform.
type JWTManager struct {
	secretKey []byte
	maxAge    time.Duration
	parser    *jwt.Parser
}

func NewJWTManager(secretKey string, maxAge time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		maxAge:    maxAge,
		parser: jwt.NewParser(
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockSkew),
		),
	}
}

func (m *JWTManager) Generate(id string, now time.Time) (string, error) {
	claims := sessionClaims{
		Id: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.UnexpectedTokenGenerationError, err)
	}

	return signedToken, nil
}

// Verify returns the user id a valid token was issued for.
func (m *JWTManager) Verify(tokenString string) (string, error) {
	token, err := m.parser.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidSigningAlg
		}
		return m.secretKey, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSigningAlg):
			return "", err
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", domain.ErrExpiredToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return "", domain.ErrInvalidTokenSignature
		case errors.Is(err, jwt.ErrTokenMalformed),
			errors.Is(err, jwt.ErrTokenInvalidIssuer),
			errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
			return "", domain.ErrCorruptedToken
		default:
			return "", fmt.Errorf("%w: %w", domain.UnexpectedTokenVerificationError, err)
		}
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Id == "" {
		return "", domain.ErrCorruptedToken
	}
	return claims.Id, nil
}
