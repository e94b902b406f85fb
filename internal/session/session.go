// Package session provides the server-side session: a phase-tagged state
// record persisted in the row store, keyed by an opaque cookie id.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/brizzai/auth-gateway/internal/auth/models"
)

// Phase is the session lifecycle phase. Keeping the state tagged makes
// illegal combinations (tokens without a user, a verifier outside a pending
// login) unrepresentable.
type Phase string

const (
	PhaseAnonymous     Phase = "anonymous"
	PhasePendingAuth   Phase = "pending_auth"
	PhaseAuthenticated Phase = "authenticated"
)

// PendingAuth holds the transient PKCE state between /login and /callback.
type PendingAuth struct {
	CodeVerifier string `json:"code_verifier"`
	State        string `json:"state"`
}

// State is the serialized session payload.
type State struct {
	Phase   Phase               `json:"phase"`
	Pending *PendingAuth        `json:"pending,omitempty"`
	Tokens  *models.TokenSet    `json:"tokens,omitempty"`
	User    *models.UserProfile `json:"user,omitempty"`
}

// Session is the mutable per-request view of a stored session. It is owned
// by the request holding its cookie; no cross-request locking is provided,
// concurrent writers are last-writer-wins.
type Session struct {
	id        string
	state     State
	isNew     bool
	dirty     bool
	destroyed bool
}

// New returns a fresh anonymous session with an unguessable id. The manager
// creates these for requests without a usable cookie; tests can build
// sessions directly and attach them with NewContext.
func New() *Session {
	return &Session{
		id:    newSessionID(),
		state: State{Phase: PhaseAnonymous},
		isNew: true,
	}
}

// newSessionID returns an opaque unguessable token.
func newSessionID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("session: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// ID returns the opaque session id.
func (s *Session) ID() string { return s.id }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase { return s.state.Phase }

// Pending returns the stored PKCE state, or nil outside a pending login.
func (s *Session) Pending() *PendingAuth { return s.state.Pending }

// Tokens returns the stored token set, or nil when not authenticated.
func (s *Session) Tokens() *models.TokenSet { return s.state.Tokens }

// User returns the claims-derived user, or nil when not authenticated.
func (s *Session) User() *models.UserProfile { return s.state.User }

// BeginAuth moves the session into the pending-authorization phase, storing
// the PKCE verifier and anti-CSRF state. Any prior tokens are discarded.
func (s *Session) BeginAuth(codeVerifier, state string) {
	s.state = State{
		Phase:   PhasePendingAuth,
		Pending: &PendingAuth{CodeVerifier: codeVerifier, State: state},
	}
	s.dirty = true
}

// CompleteAuth moves the session into the authenticated phase, clearing the
// transient PKCE fields.
func (s *Session) CompleteAuth(tokens *models.TokenSet, user *models.UserProfile) {
	s.state = State{
		Phase:  PhaseAuthenticated,
		Tokens: tokens,
		User:   user,
	}
	s.dirty = true
}

// SetTokens replaces the token set after a refresh.
func (s *Session) SetTokens(tokens *models.TokenSet) {
	s.state.Tokens = tokens
	s.dirty = true
}

// Destroy marks the session for synchronous removal. Destruction is
// irreversible: later writes in the same request are discarded.
func (s *Session) Destroy() {
	s.destroyed = true
	s.state = State{Phase: PhaseAnonymous}
}

// Destroyed reports whether Destroy was called.
func (s *Session) Destroyed() bool { return s.destroyed }

// Authenticated reports whether the session carries a user.
func (s *Session) Authenticated() bool {
	return s.state.Phase == PhaseAuthenticated && s.state.User != nil
}

// Expired reports whether the access token has lapsed.
func (s *Session) Expired(now time.Time) bool {
	return s.state.Tokens != nil && s.state.Tokens.Expired(now)
}
