package auth

import (
	"fmt"
	"time"

	"blog-lab/domain"
	"blog-lab/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CustomClaims is the payload stored inside the JWT. A user holds exactly
// one role; authorization decisions derive from it.
type CustomClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates session tokens with an HMAC secret
// loaded from configuration.
type TokenManager struct {
	secret   []byte
	duration time.Duration
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), duration: duration}
}

// GenerateToken creates a signed HS256 JWT for the user.
func (t *TokenManager) GenerateToken(userID uuid.UUID, role domain.Role) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID.String(),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "blog-lab",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken checks signature and expiration and returns the caller's
// identity.
func (t *TokenManager) ValidateToken(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return domain.Identity{}, fmt.Errorf("%w: invalid claims", errors.ErrUnauthenticated)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: malformed subject", errors.ErrUnauthenticated)
	}
	role := domain.Role(claims.Role)
	if !domain.ValidRole(role) {
		return domain.Identity{}, fmt.Errorf("%w: unknown role %q", errors.ErrUnauthenticated, claims.Role)
	}
	return domain.Identity{UserID: userID, Role: role}, nil
}
