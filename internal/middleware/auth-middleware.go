package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/itsDrac/e-auc-bidding/internal/handlers"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
)

type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*config.UserClaims, error)
}

// AuthMiddleware puts the access token's claims on the request context. The
// token comes from the Authorization header, or from the query string for
// websocket clients that cannot set headers.
func AuthMiddleware(v TokenValidator) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accessTokenString, ok := bearerToken(r)
			if !ok {
				handlers.RespondErrorJSON(w, r, http.StatusUnauthorized, handlers.ErrMissingToken.Error(), "Missing token in the Authorization header", nil)
				return
			}

			claims, err := v.ValidateAccessToken(accessTokenString)
			if err != nil {
				handlers.RespondErrorJSON(w, r, http.StatusUnauthorized, handlers.ErrToken.Error(), "Token is either expired or invalid.", nil)
				return
			}

			ctx := context.WithValue(r.Context(), config.UserClaimKey, claims)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets through only callers whose claims carry one of roles. It
// must run after AuthMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := handlers.GetUserClaims(r.Context())
			if claims == nil {
				handlers.RespondErrorJSON(w, r, http.StatusUnauthorized, handlers.ErrAuthFailed.Error(), "user claims not found in context", nil)
				return
			}
			if !slices.Contains(roles, claims.Role) {
				handlers.RespondErrorJSON(w, r, http.StatusForbidden, handlers.ErrForbidden.Error(), "role not allowed for this operation", nil)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := r.URL.Query().Get(config.AccessTokenQueryParam); token != "" {
		return token, true
	}
	return "", false
}
