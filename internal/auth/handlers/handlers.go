// Package handlers implements the authentication flow: login, callback,
// status, refresh, and logout against the external identity provider.
package handlers

import (
	"net/http"
	"time"

	"github.com/brizzai/auth-gateway/internal/audit"
	"github.com/brizzai/auth-gateway/internal/auth/constants"
	"github.com/brizzai/auth-gateway/internal/auth/models"
	"github.com/brizzai/auth-gateway/internal/auth/providers"
	"github.com/brizzai/auth-gateway/internal/logger"
	"github.com/brizzai/auth-gateway/internal/session"
	"github.com/brizzai/auth-gateway/internal/utils"
	"go.uber.org/zap"
)

// Handler orchestrates the auth state machine over the session and the
// OIDC provider.
type Handler struct {
	provider           providers.Provider
	callbackURL        string
	postLogoutRedirect string
}

// NewHandler creates a new Handler instance.
func NewHandler(provider providers.Provider, appURL, postLogoutRedirect string) *Handler {
	return &Handler{
		provider:           provider,
		callbackURL:        appURL + constants.CallbackPath,
		postLogoutRedirect: postLogoutRedirect,
	}
}

// HandleLogin moves the session into the pending-authorization phase and
// redirects to the provider's authorization endpoint.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := session.FromContext(r.Context())

	codeVerifier := providers.NewCodeVerifier()
	state := providers.NewState()
	sess.BeginAuth(codeVerifier, state)

	redirectTo := h.provider.AuthCodeURL(state, providers.ChallengeS256(codeVerifier), h.callbackURL)
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

// HandleCallback completes the authorization-code exchange. The inbound
// state must match the stored one, and a code verifier must be present; a
// stale, replayed, or cross-session callback fails both checks.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := session.FromContext(r.Context())
	pending := sess.Pending()

	if pending == nil || pending.CodeVerifier == "" {
		logger.Error("No code verifier found in session")
		audit.CaptureError(r.Context(), models.ErrAuthState.Error())
		utils.WriteError(w, http.StatusBadRequest, "Invalid authentication state")
		return
	}

	query := r.URL.Query()
	if query.Get("state") == "" || query.Get("state") != pending.State {
		logger.Error("State mismatch on callback")
		audit.CaptureError(r.Context(), models.ErrAuthState.Error())
		utils.WriteError(w, http.StatusBadRequest, "Invalid authentication state")
		return
	}

	tokens, user, err := h.provider.Exchange(r.Context(), query.Get("code"), pending.CodeVerifier, h.callbackURL)
	if err != nil {
		logger.Error("OAuth token exchange failed", zap.Error(err))
		audit.CaptureError(r.Context(), models.ErrTokenExchange.Error())
		utils.WriteError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	if tokens.ExpiresAt.IsZero() && tokens.ExpiresIn > 0 {
		tokens.ExpiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}

	// Tokens stay server-side in the session, never sent to the browser.
	sess.CompleteAuth(tokens, user)

	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleStatus reports the current auth state without exposing tokens:
// 200 = authenticated, 401 = no session, 419 = session expired.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := session.FromContext(r.Context())

	// Access token expired: destroy the session and signal "expired" so
	// clients can distinguish it from never having authenticated.
	if sess.Authenticated() && sess.Expired(time.Now()) {
		sess.Destroy()
		audit.CaptureError(r.Context(), models.ErrSessionExpired.Error())
		utils.WriteError(w, constants.StatusSessionExpired, "Session expired")
		return
	}

	if !sess.Authenticated() {
		utils.WriteError(w, http.StatusUnauthorized, models.ErrUnauthenticated.Error())
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user":      sess.User(),
		"expiresAt": sess.Tokens().ExpiresAt,
	})
}

// HandleRefresh replaces the token set using the refresh token. A rejected
// refresh destroys the session.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := session.FromContext(r.Context())
	prior := sess.Tokens()

	if prior == nil || prior.RefreshToken == "" {
		utils.WriteError(w, http.StatusUnauthorized, "No refresh token available")
		return
	}

	tokens, err := h.provider.Refresh(r.Context(), prior.RefreshToken)
	if err != nil {
		logger.Error("Token refresh failed", zap.Error(err))
		audit.CaptureError(r.Context(), models.ErrTokenRefresh.Error())
		// The refresh token is invalid or expired: the session is done.
		sess.Destroy()
		utils.WriteError(w, http.StatusUnauthorized, "Token refresh failed")
		return
	}

	if tokens.ExpiresAt.IsZero() && tokens.ExpiresIn > 0 {
		tokens.ExpiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}

	// Providers may omit the refresh or ID token on refresh; keep the
	// previously issued values.
	tokens.Merge(prior)
	sess.SetTokens(tokens)

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"expiresAt": tokens.ExpiresAt,
	})
}

// HandleLogout revokes tokens best-effort and destroys the session. The
// end-session URL is built before destruction, which erases the ID token.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := session.FromContext(r.Context())
	tokens := sess.Tokens()

	var endSessionURL string
	if tokens != nil && tokens.IDToken != "" {
		endSessionURL = h.provider.EndSessionURL(tokens.IDToken, h.postLogoutRedirect)
	}

	if tokens != nil && tokens.AccessToken != "" {
		if err := h.provider.Revoke(r.Context(), tokens.AccessToken); err != nil {
			logger.Warn("Token revocation failed", zap.Error(err))
		}
	}

	sess.Destroy()

	response := map[string]interface{}{"ok": true}
	if endSessionURL != "" {
		response["endSessionUrl"] = endSessionURL
	}
	utils.WriteJSON(w, http.StatusOK, response)
}
