package providers

import (
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// NewCodeVerifier generates a PKCE code verifier.
func NewCodeVerifier() string {
	return oauth2.GenerateVerifier()
}

// ChallengeS256 derives the S256 code challenge from a verifier.
func ChallengeS256(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// NewState generates an anti-CSRF state value.
func NewState() string {
	return uuid.NewString()
}
