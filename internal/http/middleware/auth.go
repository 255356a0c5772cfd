package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/replygo/whatsapp-ai-platform/internal/tenancy"
)

// DashboardJWT enforces the HMAC-signed JWT the dashboard sends. The token's
// subject is the tenant email; when the route carries an {email} URL param it
// must match the subject, so a tenant can never read another tenant's data.
func DashboardJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "dashboard auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			email := strings.TrimSpace(claims.Subject)
			if email == "" {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if routeEmail := chi.URLParam(r, "email"); routeEmail != "" && !strings.EqualFold(routeEmail, email) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(tenancy.WithTenantEmail(r.Context(), email)))
		})
	}
}
