package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireAuth guards a handler with a static bearer token. With no token
// configured the API is open, which is the development default.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Cfg.AuthToken == "" {
			next(w, r)
			return
		}
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required", r.URL.Path)
			return
		}
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if subtle.ConstantTimeCompare([]byte(tok), []byte(s.Cfg.AuthToken)) != 1 {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid token", r.URL.Path)
			return
		}
		next(w, r)
	}
}
