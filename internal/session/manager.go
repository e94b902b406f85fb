package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/brizzai/auth-gateway/internal/config"
	"github.com/brizzai/auth-gateway/internal/logger"
	"go.uber.org/zap"
)

type sessionContextKey string

const contextKey sessionContextKey = "session"

// Store is the durable backing for sessions. Implemented by the SQLite row
// store; get must treat expired rows as absent.
type Store interface {
	GetSession(ctx context.Context, id string) (payload []byte, ok bool, err error)
	PutSession(ctx context.Context, id string, payload []byte, expiresAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
}

// Manager issues the session cookie and loads/saves the session around each
// request.
type Manager struct {
	store  Store
	cfg    *config.SessionConfig
	secure bool
}

// NewManager creates a session manager backed by the given store.
func NewManager(store Store, cfg *config.Config) *Manager {
	return &Manager{
		store:  store,
		cfg:    &cfg.Session,
		secure: cfg.SecureCookies(),
	}
}

// NewContext returns a context carrying the session.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey, sess)
}

// FromContext returns the request's session, or nil when the middleware did
// not run.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(contextKey).(*Session)
	return sess
}

// Middleware loads the session by cookie before the handler and persists it,
// with a sliding expiry, just before the handler commits the response.
// Response headers are immutable once the first byte goes out, so the save
// and its Set-Cookie must land before that. A request that never writes to a
// fresh session issues no cookie and stores nothing.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.load(r)

		ctx := NewContext(r.Context(), sess)
		sw := &sessionWriter{
			ResponseWriter: w,
			manager:        m,
			sess:           sess,
			// The persist must complete even if the client disconnects
			// mid-response.
			saveCtx: context.WithoutCancel(ctx),
		}
		next.ServeHTTP(sw, r.WithContext(ctx))

		// A handler that sent no response still gets its session saved.
		sw.commit()
	})
}

// sessionWriter persists the session and emits the cookie on the first
// WriteHeader or Write, while headers can still be set.
type sessionWriter struct {
	http.ResponseWriter
	manager   *Manager
	sess      *Session
	saveCtx   context.Context
	committed bool
}

func (w *sessionWriter) WriteHeader(status int) {
	w.commit()
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Flush() {
	w.commit()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *sessionWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true
	w.manager.save(w.saveCtx, w.ResponseWriter, w.sess)
}

func (m *Manager) load(r *http.Request) *Session {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return New()
	}

	id, ok := m.verifyCookie(cookie.Value)
	if !ok {
		return New()
	}

	payload, found, err := m.store.GetSession(r.Context(), id)
	if err != nil {
		logger.Error("Failed to load session", zap.Error(err))
		return New()
	}
	if !found {
		return New()
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		logger.Warn("Discarding undecodable session payload", zap.String("session_id", id))
		return New()
	}

	return &Session{id: id, state: state}
}

func (m *Manager) save(ctx context.Context, w http.ResponseWriter, sess *Session) {
	if sess.destroyed {
		// A fresh session that was never persisted has no row to delete
		// and no cookie to clear.
		if !sess.isNew {
			if err := m.store.DeleteSession(ctx, sess.id); err != nil {
				logger.Error("Failed to destroy session", zap.Error(err))
			}
			m.clearCookie(w)
		}
		return
	}

	if !sess.dirty {
		return
	}

	payload, err := json.Marshal(sess.state)
	if err != nil {
		logger.Error("Failed to encode session payload", zap.Error(err))
		return
	}

	// Sliding window: every write pushes expiry forward.
	expiresAt := time.Now().Add(m.cfg.TTL)
	if err := m.store.PutSession(ctx, sess.id, payload, expiresAt); err != nil {
		logger.Error("Failed to persist session", zap.Error(err))
		return
	}

	m.setCookie(w, sess.id)
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    m.signCookie(id),
		Path:     "/",
		MaxAge:   int(m.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// signCookie returns "id.signature" so a forged or tampered sid is rejected
// before the store is consulted.
func (m *Manager) signCookie(id string) string {
	return id + "." + m.signature(id)
}

func (m *Manager) verifyCookie(value string) (string, bool) {
	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 {
		return "", false
	}
	id, sig := value[:idx], value[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(m.signature(id))) {
		return "", false
	}
	return id, true
}

func (m *Manager) signature(id string) string {
	mac := hmac.New(sha256.New, []byte(m.cfg.Secret))
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
