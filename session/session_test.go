package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diewo77/rbac-console/internal/config"
	"github.com/diewo77/rbac-console/internal/db"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func setupManager(t *testing.T) (*Manager, *GormStore, *testClock) {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	store := NewGormStore(conn)
	clk := &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(store, Options{Secret: "0123456789abcdef", TTL: time.Hour, Now: clk.now})
	return m, store, clk
}

func requestWith(cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/home", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestStartAndLoad(t *testing.T) {
	m, _, clk := setupManager(t)
	rr := httptest.NewRecorder()

	sess, err := m.Start(context.Background(), rr, "admin@example.com", "tok-1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, clk.t.Add(time.Hour), sess.ExpiresAt)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	got, ok := m.Load(requestWith(cookies))
	require.True(t, ok)
	assert.Equal(t, "tok-1", got.AccessToken)
	assert.Equal(t, "admin@example.com", got.Email)
}

func TestStart_UsesTokenExpiry(t *testing.T) {
	m, _, clk := setupManager(t)
	exp := clk.t.Add(5 * time.Minute)
	sess, err := m.Start(context.Background(), httptest.NewRecorder(), "a@b.co", "tok", exp)
	require.NoError(t, err)
	assert.Equal(t, exp, sess.ExpiresAt)

	_, err = m.Start(context.Background(), httptest.NewRecorder(), "a@b.co", "tok", clk.t.Add(-time.Second))
	assert.Error(t, err)
}

func TestLoad_RejectsTamperedCookie(t *testing.T) {
	m, _, _ := setupManager(t)
	rr := httptest.NewRecorder()
	_, err := m.Start(context.Background(), rr, "a@b.co", "tok", time.Time{})
	require.NoError(t, err)
	c := rr.Result().Cookies()[0]

	tampered := *c
	tampered.Value = c.Value + "x"
	_, ok := m.Load(requestWith([]*http.Cookie{&tampered}))
	assert.False(t, ok)

	other := NewManager(m.store, Options{Secret: "another-secret-value"})
	_, ok = other.Load(requestWith([]*http.Cookie{c}))
	assert.False(t, ok)
}

func TestLoad_ExpiredIsDeleted(t *testing.T) {
	m, store, clk := setupManager(t)
	rr := httptest.NewRecorder()
	sess, err := m.Start(context.Background(), rr, "a@b.co", "tok", time.Time{})
	require.NoError(t, err)

	clk.t = clk.t.Add(time.Hour)
	_, ok := m.Load(requestWith(rr.Result().Cookies()))
	assert.False(t, ok)

	_, err = store.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnd(t *testing.T) {
	m, store, _ := setupManager(t)
	rr := httptest.NewRecorder()
	sess, err := m.Start(context.Background(), rr, "a@b.co", "tok", time.Time{})
	require.NoError(t, err)

	out := httptest.NewRecorder()
	m.End(out, requestWith(rr.Result().Cookies()))

	_, err = store.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	cleared := out.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "", cleared[0].Value)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestMiddlewareAndRequire(t *testing.T) {
	m, _, _ := setupManager(t)
	protected := m.Middleware(Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := FromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(sess.Email))
	})))

	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/home", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/home", nil)
	r.Header.Set("Accept", "application/json")
	protected.ServeHTTP(rr, r)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	login := httptest.NewRecorder()
	_, err := m.Start(context.Background(), login, "ops@example.com", "tok", time.Time{})
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, requestWith(login.Result().Cookies()))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ops@example.com", rr.Body.String())
}

func TestMiddleware_ClearsStaleCookie(t *testing.T) {
	m, _, _ := setupManager(t)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, requestWith([]*http.Cookie{{Name: CookieName, Value: "garbage"}}))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestSweep(t *testing.T) {
	m, store, clk := setupManager(t)
	ctx := context.Background()
	short, err := m.Start(ctx, httptest.NewRecorder(), "a@b.co", "tok", clk.t.Add(time.Minute))
	require.NoError(t, err)
	long, err := m.Start(ctx, httptest.NewRecorder(), "a@b.co", "tok", clk.t.Add(time.Hour*2))
	require.NoError(t, err)

	clk.t = clk.t.Add(time.Hour)
	n, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, short.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, long.ID)
	assert.NoError(t, err)
}

func TestRevoke(t *testing.T) {
	m, store, _ := setupManager(t)
	ctx := context.Background()
	sess, err := m.Start(ctx, httptest.NewRecorder(), "a@b.co", "tok", time.Time{})
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

