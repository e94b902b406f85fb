package models

import "time"

// TokenSet holds the tokens issued by the identity provider for one session.
// ExpiresAt is absolute: issue time plus the provider's expires_in.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token has lapsed.
func (t *TokenSet) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Merge fills fields the provider omitted from a refresh response with the
// values from the prior token set.
func (t *TokenSet) Merge(prior *TokenSet) {
	if prior == nil {
		return
	}
	if t.RefreshToken == "" {
		t.RefreshToken = prior.RefreshToken
	}
	if t.IDToken == "" {
		t.IDToken = prior.IDToken
	}
}

// UserProfile is the identity derived from ID-token claims.
type UserProfile struct {
	Sub   string `json:"sub"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}
