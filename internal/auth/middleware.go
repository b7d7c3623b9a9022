package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/dian-gateway/internal/models"
	pkghttp "github.com/BradenHooton/dian-gateway/pkg/http"
)

type contextKey string

// UserContextKey is the key for storing user claims in context
const UserContextKey contextKey = "user"

// Middleware validates the bearer access token and injects its claims into context
func Middleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, tokenString, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || scheme != "Bearer" || tokenString == "" {
				pkghttp.WriteUnauthorized(w, "Token de acceso requerido")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Token inválido o expirado")
				return
			}

			// refresh tokens are only accepted by /auth/refresh
			if claims.Type != models.TokenTypeAccess {
				pkghttp.WriteUnauthorized(w, "Token inválido o expirado")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose token does not carry role.
// Must be mounted after Middleware.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "Token de acceso requerido")
				return
			}
			if claims.Role != role {
				pkghttp.WriteForbidden(w, "Permisos insuficientes")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(UserContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
