package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"washclub-checkout-api/services/auth"
	"washclub-checkout-api/utils"
)

type contextKey string

const adminContextKey contextKey = "admin"

// AdminAuth requires a valid admin bearer token.
func AdminAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				log.WithError(err).WithField("remote", ClientIP(r)).Warn("Admin token rejected")
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					utils.SendErrorResponse(w, http.StatusUnauthorized, "Token expired")
				case errors.Is(err, auth.ErrForbidden):
					utils.SendErrorResponse(w, http.StatusForbidden, "Admin role required")
				default:
					utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), adminContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminFromContext returns the claims set by AdminAuth, or nil.
func AdminFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(adminContextKey).(*auth.Claims)
	return claims
}
