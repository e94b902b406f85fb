package models

import "errors"

// Sentinel errors for the authentication flow. Handlers map these onto HTTP
// status codes; everything else is treated as an internal error.
var (
	// ErrAuthState covers missing or mismatched PKCE state: a stale,
	// replayed, or cross-session callback.
	ErrAuthState = errors.New("invalid authentication state")

	// ErrTokenExchange indicates the provider rejected the code grant.
	ErrTokenExchange = errors.New("token exchange failed")

	// ErrTokenRefresh indicates the provider rejected the refresh grant.
	ErrTokenRefresh = errors.New("token refresh failed")

	// ErrSessionExpired indicates the access token has lapsed.
	ErrSessionExpired = errors.New("session expired")

	// ErrUnauthenticated indicates no session or user is present.
	ErrUnauthenticated = errors.New("not authenticated")
)
