package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
)

type JWTManager interface {
	GenerateAccessToken(claims config.UserClaims) (string, error)
	ValidateAccessToken(tokenString string) (*config.UserClaims, error)
}

// JwtManager validates access tokens issued by the platform's session service.
// Minting is kept for local tooling and tests.
type JwtManager struct {
	accessSecret []byte
}

func NewJwtManager(accessSecret string) (*JwtManager, error) {
	if accessSecret == "" {
		return nil, errors.New("JWT secret must be set in environment: ACCESS_TOKEN_SECRET")
	}
	return &JwtManager{
		accessSecret: []byte(accessSecret),
	}, nil
}

// GenerateAccessToken signs claims for a bidder scoped to one tenant.
func (jm *JwtManager) GenerateAccessToken(claims config.UserClaims) (string, error) {
	now := time.Now()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(config.AccessTokenDuration))
	}
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ID = uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jm.accessSecret)
}

// ValidateAccessToken verifies and returns the claims from an access token string.
func (jm *JwtManager) ValidateAccessToken(tokenString string) (*config.UserClaims, error) {
	claims := &config.UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method.Alg())
		}
		return jm.accessSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	if claims.UserID == uuid.Nil || claims.TenantID == uuid.Nil {
		return nil, errors.New("invalid access token: missing user or tenant")
	}

	return claims, nil
}
