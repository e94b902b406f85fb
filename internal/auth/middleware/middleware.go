// Package middleware provides the route guards for the two authorization
// levels: session-level (has user) and resource-level (has access token).
package middleware

import (
	"net/http"

	"github.com/brizzai/auth-gateway/internal/auth/models"
	"github.com/brizzai/auth-gateway/internal/session"
	"github.com/brizzai/auth-gateway/internal/utils"
)

// RequireUser guards routes that only need to know who is logged in, not a
// live token.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil || !sess.Authenticated() {
			utils.WriteError(w, http.StatusUnauthorized, models.ErrUnauthenticated.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAccessToken guards routes that proxy to the downstream API.
func RequireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil || sess.Tokens() == nil || sess.Tokens().AccessToken == "" {
			utils.WriteError(w, http.StatusUnauthorized, models.ErrUnauthenticated.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
