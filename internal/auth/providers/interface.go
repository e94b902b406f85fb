package providers

import (
	"context"

	"github.com/brizzai/auth-gateway/internal/auth/models"
)

// Provider is the gateway's adapter over the identity provider. Protocol
// correctness (discovery, token validation, PKCE math) lives behind it.
type Provider interface {
	// AuthCodeURL returns the provider's authorization URL carrying the
	// PKCE challenge and anti-CSRF state.
	AuthCodeURL(state, codeChallenge, redirectURI string) string

	// Exchange trades an authorization code for tokens and verifies the
	// ID token, returning the claims-derived user profile.
	Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (*models.TokenSet, *models.UserProfile, error)

	// Refresh trades a refresh token for a new token set.
	Refresh(ctx context.Context, refreshToken string) (*models.TokenSet, error)

	// Revoke revokes a token at the provider. Best-effort; callers log
	// failures and move on.
	Revoke(ctx context.Context, token string) error

	// EndSessionURL builds the provider's logout URL, or returns "" when
	// the issuer advertises no end-session endpoint.
	EndSessionURL(idTokenHint, postLogoutRedirect string) string
}
