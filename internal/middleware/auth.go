package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/mclemens/timekeep/internal/auth"
)

const sessionHeader = "X-Session-Id"

// SessionToken extracts the session token from the X-Session-Id header,
// falling back to the sessionId query parameter.
func SessionToken(r *http.Request) string {
	if token := r.Header.Get(sessionHeader); token != "" {
		return token
	}
	return r.URL.Query().Get("sessionId")
}

// RequireAuth resolves the request's session token and populates AuthContext.
// Requests without a valid session get a 401 JSON error.
func RequireAuth(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			user, err := resolver.Resolve(token)
			if err != nil || user == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			ac := auth.AuthContext{
				UserID:   user.ID,
				Username: user.Username,
				Token:    token,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
