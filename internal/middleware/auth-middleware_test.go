package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
	"github.com/itsDrac/e-auc-bidding/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	jm, err := jwt.NewJwtManager("middleware-secret")
	require.NoError(t, err)

	userID, tenantID := uuid.New(), uuid.New()
	token, err := jm.GenerateAccessToken(config.UserClaims{UserID: userID, TenantID: tenantID, DisplayName: "Bidder A"})
	require.NoError(t, err)

	var seen *config.UserClaims
	h := AuthMiddleware(jm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(config.UserClaimKey).(*config.UserClaims)
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer " + token, "", http.StatusNoContent},
		{"query token", "", token, http.StatusNoContent},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, "", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			target := "/"
			if tt.query != "" {
				target += "?" + config.AccessTokenQueryParam + "=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, userID, seen.UserID)
				assert.Equal(t, tenantID, seen.TenantID)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	jm, err := jwt.NewJwtManager("middleware-secret")
	require.NoError(t, err)

	reached := false
	h := AuthMiddleware(jm)(RequireRole(config.RoleAdmin, config.RoleOps)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name   string
		role   string
		status int
	}{
		{"admin", config.RoleAdmin, http.StatusNoContent},
		{"ops", config.RoleOps, http.StatusNoContent},
		{"bidder", "bidder", http.StatusForbidden},
		{"no role", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			token, err := jm.GenerateAccessToken(config.UserClaims{UserID: uuid.New(), TenantID: uuid.New(), Role: tt.role})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status == http.StatusNoContent, reached)
			if tt.status == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), "FORBIDDEN")
			}
		})
	}

	t.Run("without claims", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireRole(config.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
