// Package live serves the admin views over websockets. Each connection
// owns one view on its own console.Loop; the browser sends events and
// receives the re-rendered fragment.
package live

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/diewo77/rbac-console/internal/console"
	"github.com/diewo77/rbac-console/internal/metrics"
	"github.com/diewo77/rbac-console/internal/querycache"
	"github.com/diewo77/rbac-console/session"
	"github.com/diewo77/rbac-console/view"
)

// ExpiredRedirect is where a connection whose token was rejected is sent.
const ExpiredRedirect = "/?expired=1"

// Options configures a Handler.
type Options struct {
	API      console.Backend
	Cache    *querycache.Cache
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Clock    clock.Clock
	Debounce time.Duration
	// Revoke ends a session whose token the backend rejected.
	Revoke      func(ctx context.Context, id string) error
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades requests into live views.
type Handler struct {
	opts     Options
	upgrader websocket.Upgrader
	hub      *Hub
}

// New returns a handler. Without CheckOrigin only same-host origins are
// accepted.
func New(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Handler{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		hub: newHub(),
	}
}

// Permissions serves the permission list view.
func (h *Handler) Permissions() http.Handler {
	return h.serve("permissions", newPermissionsPage)
}

// Groups serves the group composition view.
func (h *Handler) Groups() http.Handler {
	return h.serve("groups", newGroupsPage)
}

// Shutdown closes every open connection.
func (h *Handler) Shutdown() { h.hub.closeAll() }

// Count is the number of open connections.
func (h *Handler) Count() int { return h.hub.count() }

func (h *Handler) serve(name string, build pageFactory) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ws, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already replied.
			h.opts.Logger.Warn("live upgrade failed", zap.String("view", name), zap.Error(err))
			return
		}
		c := newConn(h, ws, name, sess, view.Lang(r))
		h.hub.add(c)
		h.opts.Metrics.LiveOpened()
		h.opts.Logger.Info("live connection opened", zap.String("view", name), zap.String("session_id", sess.ID))

		c.run(r.Context(), build, r.URL.RawQuery)

		h.hub.remove(c)
		h.opts.Metrics.LiveClosed()
		h.opts.Logger.Info("live connection closed", zap.String("view", name), zap.String("session_id", sess.ID))
	})
}

// Hub tracks open connections.
type Hub struct {
	mu    sync.Mutex
	conns map[*conn]struct{}
}

func newHub() *Hub { return &Hub{conns: make(map[*conn]struct{})} }

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *Hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.shutdown()
	}
}
