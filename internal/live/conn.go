package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/diewo77/rbac-console/i18n"
	"github.com/diewo77/rbac-console/internal/console"
	"github.com/diewo77/rbac-console/internal/models"
	"github.com/diewo77/rbac-console/internal/notify"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 8 << 10
)

// Event is one browser event.
type Event struct {
	Op    string `json:"op"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
	ID    int64  `json:"id,omitempty"`
}

// Toast is a translated notification.
type Toast struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Push is one server message. Query is set only by views that own the
// page URL.
type Push struct {
	HTML     string  `json:"html,omitempty"`
	Query    *string `json:"query,omitempty"`
	Toasts   []Toast `json:"toasts,omitempty"`
	Redirect string  `json:"redirect,omitempty"`
}

// outbox holds the next push. Pushes not yet written are merged so a slow
// socket only ever receives the latest fragment.
type outbox struct {
	mu      sync.Mutex
	pending *Push
	ready   chan struct{}
}

func (o *outbox) put(p Push) {
	o.mu.Lock()
	if o.pending == nil {
		o.pending = &p
	} else {
		if p.HTML != "" {
			o.pending.HTML = p.HTML
		}
		if p.Query != nil {
			o.pending.Query = p.Query
		}
		o.pending.Toasts = append(o.pending.Toasts, p.Toasts...)
		if p.Redirect != "" {
			o.pending.Redirect = p.Redirect
		}
	}
	o.mu.Unlock()
	select {
	case o.ready <- struct{}{}:
	default:
	}
}

func (o *outbox) take() (Push, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return Push{}, false
	}
	p := *o.pending
	o.pending = nil
	return p, true
}

type conn struct {
	h    *Handler
	ws   *websocket.Conn
	name string
	sess *models.Session
	lang string
	log  *zap.Logger

	out   outbox
	queue notify.Queue
	loop  *console.Loop
	quit  chan struct{}
	once  sync.Once

	// loop-owned
	page    page
	expired bool
}

func newConn(h *Handler, ws *websocket.Conn, name string, sess *models.Session, lang string) *conn {
	return &conn{
		h:    h,
		ws:   ws,
		name: name,
		sess: sess,
		lang: lang,
		log:  h.opts.Logger.With(zap.String("view", name), zap.String("session_id", sess.ID)),
		out:  outbox{ready: make(chan struct{}, 1)},
		quit: make(chan struct{}),
	}
}

// run serves the connection until either side closes it.
func (c *conn) run(parent context.Context, build pageFactory, query string) {
	c.loop = console.NewLoop(parent, console.WithAfterTurn(c.flush))
	deps := console.Deps{
		API:          c.h.opts.API,
		Cache:        c.h.opts.Cache,
		Token:        c.sess.AccessToken,
		Notify:       &c.queue,
		Clock:        c.h.opts.Clock,
		Debounce:     c.h.opts.Debounce,
		Logger:       c.log,
		Unauthorized: c.unauthorized,
	}
	c.loop.Do(func() {
		c.page = build(c.loop, deps)
		c.page.start(query)
	})

	written := make(chan struct{})
	go func() {
		defer close(written)
		c.writePump()
	}()
	c.readPump()

	c.loop.Do(func() {
		if c.page != nil {
			c.page.close()
		}
	})
	c.loop.Stop()
	c.shutdown()
	<-written
}

// shutdown asks the writer to send a close frame and hang up.
func (c *conn) shutdown() { c.once.Do(func() { close(c.quit) }) }

// unauthorized runs on the loop when the backend rejects the token.
func (c *conn) unauthorized() {
	if c.expired {
		return
	}
	c.expired = true
	c.log.Info("access token rejected, ending session")
	if c.h.opts.Revoke != nil {
		ctx := context.WithoutCancel(c.loop.Context())
		go func() {
			if err := c.h.opts.Revoke(ctx, c.sess.ID); err != nil {
				c.log.Warn("session revoke failed", zap.Error(err))
			}
		}()
	}
}

// flush runs after every loop turn and queues at most one push.
func (c *conn) flush() {
	if c.page == nil {
		return
	}
	dirty := c.page.takeDirty()
	toasts := c.queue.Drain()
	if !dirty && len(toasts) == 0 && !c.expired {
		return
	}
	var p Push
	if dirty {
		html, err := c.page.render(c.lang)
		if err != nil {
			c.log.Error("live render failed", zap.Error(err))
		} else {
			p.HTML = html
		}
		p.Query = c.page.query()
	}
	for _, t := range toasts {
		p.Toasts = append(p.Toasts, Toast{Kind: string(t.Kind), Message: i18n.T(c.lang, t.Code)})
	}
	if c.expired {
		p.Redirect = ExpiredRedirect
	}
	c.out.put(p)
}

func (c *conn) dispatch(ev Event) {
	if c.expired || c.page == nil {
		return
	}
	if err := c.page.dispatch(ev); err != nil {
		c.log.Debug("live event rejected", zap.String("op", ev.Op), zap.Error(err))
	}
}

func (c *conn) readPump() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Debug("live read failed", zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Debug("malformed live event", zap.Error(err))
			continue
		}
		if !c.loop.Post(func() { c.dispatch(ev) }) {
			return
		}
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.quit:
			c.writeClose()
			return
		case <-c.out.ready:
			p, ok := c.out.take()
			if !ok {
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(p); err != nil {
				c.log.Debug("live write failed", zap.Error(err))
				return
			}
			if p.Redirect != "" {
				c.writeClose()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *conn) writeClose() {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
