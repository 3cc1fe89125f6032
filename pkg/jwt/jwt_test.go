package jwt

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	jm, err := NewJwtManager("test-access-secret")
	require.NoError(t, err)

	userID, tenantID := uuid.New(), uuid.New()
	token, err := jm.GenerateAccessToken(config.UserClaims{UserID: userID, TenantID: tenantID, DisplayName: "Bidder A"})
	require.NoError(t, err)

	claims, err := jm.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, tenantID, claims.TenantID)
	assert.Equal(t, "Bidder A", claims.DisplayName)
}

func TestValidateAccessTokenRejects(t *testing.T) {
	jm, err := NewJwtManager("test-access-secret")
	require.NoError(t, err)
	other, err := NewJwtManager("another-secret")
	require.NoError(t, err)

	foreign, err := other.GenerateAccessToken(config.UserClaims{UserID: uuid.New(), TenantID: uuid.New()})
	require.NoError(t, err)
	expired, err := jm.GenerateAccessToken(config.UserClaims{
		UserID:           uuid.New(),
		TenantID:         uuid.New(),
		RegisteredClaims: gojwt.RegisteredClaims{ExpiresAt: gojwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	require.NoError(t, err)
	noTenant, err := jm.GenerateAccessToken(config.UserClaims{UserID: uuid.New()})
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":        "not-a-token",
		"wrong secret":   foreign,
		"expired":        expired,
		"missing tenant": noTenant,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := jm.ValidateAccessToken(tok)
			assert.Error(t, err)
		})
	}
}

func TestNewJwtManagerRequiresSecret(t *testing.T) {
	_, err := NewJwtManager("")
	assert.Error(t, err)
}
