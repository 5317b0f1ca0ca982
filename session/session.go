// Package session keeps console users signed in. The browser holds a signed
// cookie naming a session row; the row holds the backend access token.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diewo77/rbac-console/httpx"
	"github.com/diewo77/rbac-console/internal/models"
)

type ctxKey string

const (
	// CookieName is the name of the session cookie.
	CookieName    = "session"
	sessionCtxKey = ctxKey("session")
)

// DefaultTTL applies when the backend gives no expiry.
const DefaultTTL = 12 * time.Hour

// Options configures a Manager.
type Options struct {
	Secret string
	TTL    time.Duration
	Secure bool
	Logger *zap.Logger
	Now    func() time.Time
}

// Manager starts, loads and ends sessions.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	secure bool
	logger *zap.Logger
	now    func() time.Time
}

// NewManager returns a manager over store.
func NewManager(store Store, opts Options) *Manager {
	m := &Manager{
		store:  store,
		secret: []byte(opts.Secret),
		ttl:    opts.TTL,
		secure: opts.Secure,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

func (m *Manager) sign(id string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verify returns the session id of a signed cookie value.
func (m *Manager) verify(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// Start records a new session for accessToken and sets the cookie. The
// session lasts until expiresAt, or the configured TTL when expiresAt is
// zero. An expiresAt already past is rejected.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, email, accessToken string, expiresAt time.Time) (*models.Session, error) {
	now := m.now()
	if expiresAt.IsZero() {
		expiresAt = now.Add(m.ttl)
	}
	if !now.Before(expiresAt) {
		return nil, errors.New("session: token already expired")
	}
	sess := &models.Session{
		ID:          uuid.NewString(),
		Email:       email,
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.sign(sess.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
	m.logger.Info("session started", zap.String("session_id", sess.ID), zap.String("email", email), zap.Time("expires_at", expiresAt))
	return sess, nil
}

// Load returns the valid session of r, if any. An expired session is
// removed.
func (m *Manager) Load(r *http.Request) (*models.Session, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	id, ok := m.verify(c.Value)
	if !ok {
		return nil, false
	}
	sess, err := m.store.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Error("session lookup failed", zap.String("session_id", id), zap.Error(err))
		}
		return nil, false
	}
	if sess.Expired(m.now()) {
		if err := m.store.Delete(r.Context(), id); err != nil {
			m.logger.Warn("expired session delete failed", zap.String("session_id", id), zap.Error(err))
		}
		return nil, false
	}
	return sess, true
}

// End deletes the session of r and clears the cookie.
func (m *Manager) End(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(CookieName); err == nil {
		if id, ok := m.verify(c.Value); ok {
			if err := m.store.Delete(r.Context(), id); err != nil {
				m.logger.Warn("session delete failed", zap.String("session_id", id), zap.Error(err))
			} else {
				m.logger.Info("session ended", zap.String("session_id", id))
			}
		}
	}
	ClearCookie(w, m.secure)
}

// Revoke deletes a session by id, as when the backend rejects its token.
func (m *Manager) Revoke(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// ClearCookie deletes the session cookie.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1, HttpOnly: true, Secure: secure, SameSite: http.SameSiteLaxMode})
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, s)
}

// FromContext extracts the session.
func FromContext(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(sessionCtxKey).(*models.Session)
	return s, ok && s != nil
}

// Middleware attaches the session to the request context if present. A
// cookie that no longer names a valid session is cleared.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := m.Load(r); ok {
			r = r.WithContext(WithSession(r.Context(), sess))
		} else if _, err := r.Cookie(CookieName); err == nil {
			ClearCookie(w, m.secure)
		}
		next.ServeHTTP(w, r)
	})
}

// Require redirects to the login page (HTML) or returns 401 JSON when the
// request has no session.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			if httpx.WantsJSON(r) {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sweep deletes every expired session.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx, m.now())
}

// RunSweeper sweeps every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				m.logger.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				m.logger.Info("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}
