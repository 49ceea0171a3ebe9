package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware validates Authorization: Bearer <token> against the
// configured API token. An empty configured token disables auth (local
// single-user setups).
func AuthMiddleware(apiToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiToken == "" {
				next.ServeHTTP(w, r)
				return
			}
			token := ""
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiToken)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing API token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
