package httpapi

import (
	"net/http"
	"strings"

	"github.com/chanjin5212/myfarm-sub001/internal/auth"
)

// AuthMiddleware verifies the bearer token and stores the caller identity on
// the request context.
func AuthMiddleware(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", false)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token", false)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin gates the operator-only shipment endpoints.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.FromContext(r.Context())
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing identity", false)
			return
		}
		if !identity.IsAdmin() {
			respondError(w, http.StatusForbidden, "forbidden", "admin role required", false)
			return
		}
		next.ServeHTTP(w, r)
	})
}
