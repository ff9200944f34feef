package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware validates the API token. If token is empty, no
// authentication is required. Otherwise requests must include
// "Authorization: Bearer <token>"; when allowQuery is set a "token" query
// parameter is accepted too, for clients that cannot set headers.
func authMiddleware(token string, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := ""
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				presented = strings.TrimPrefix(auth, "Bearer ")
			} else if allowQuery {
				presented = r.URL.Query().Get("token")
			}
			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
