package jwt

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims defines JWT payload.
type Claims struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	TeamID      string `json:"team_id,omitempty"`
	Role        string `json:"role,omitempty"`
	jwtlib.RegisteredClaims
}

// Subject identifies the principal a token is issued for.
type Subject struct {
	UserID      string
	WorkspaceID string
	TeamID      string
	Role        string
}

// GenerateToken issues a signed JWT with provided secret and ttl.
func GenerateToken(sub Subject, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:      sub.UserID,
		WorkspaceID: sub.WorkspaceID,
		TeamID:      sub.TeamID,
		Role:        sub.Role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "taskflow",
			Subject:   sub.UserID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse validates and extracts claims from token.
func Parse(token string, secret string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	return claims, nil
}
