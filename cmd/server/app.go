package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/rbac-console/httpx"
	"github.com/diewo77/rbac-console/i18n"
	"github.com/diewo77/rbac-console/internal/api"
	"github.com/diewo77/rbac-console/internal/config"
	"github.com/diewo77/rbac-console/internal/db"
	"github.com/diewo77/rbac-console/internal/handlers"
	"github.com/diewo77/rbac-console/internal/live"
	"github.com/diewo77/rbac-console/internal/logger"
	"github.com/diewo77/rbac-console/internal/metrics"
	"github.com/diewo77/rbac-console/internal/querycache"
	"github.com/diewo77/rbac-console/session"
	"github.com/diewo77/rbac-console/view"
)

// cacheNamespace prefixes every redis key written by the query cache.
const cacheNamespace = "rbac-console"

// App wires every handler of the console.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *gorm.DB
	sessions *session.Manager
	cache    *querycache.Cache
	metrics  *metrics.Metrics
	live     *live.Handler
	health   *handlers.Health
	mux      *http.ServeMux
	handler  http.Handler
	closers  []func() error
}

// NewApp builds the application on an open, migrated database.
func NewApp(cfg *config.Config, conn *gorm.DB, l *zap.Logger) (*App, error) {
	if l == nil {
		l = zap.NewNop()
	}
	view.SetDev(cfg.App.Dev)
	view.SetLangResolver(func(r *http.Request) string {
		if lang := view.RequestLang(r); lang != "" {
			return lang
		}
		return cfg.App.DefaultLang
	})

	a := &App{
		cfg:     cfg,
		logger:  l,
		db:      conn,
		metrics: metrics.New(),
		mux:     http.NewServeMux(),
	}

	a.sessions = session.NewManager(session.NewGormStore(conn), session.Options{
		Secret: cfg.Session.Secret,
		TTL:    cfg.Session.TTL,
		Secure: cfg.Session.CookieSecure,
		Logger: l.Named("session"),
	})

	checks := map[string]handlers.Check{
		"database": func(context.Context) error { return db.Ping(conn) },
	}
	store, err := a.cacheStore(checks)
	if err != nil {
		return nil, err
	}
	a.cache = querycache.New(store,
		querycache.WithTTL(cfg.Cache.TTL),
		querycache.WithObserver(a.metrics),
		querycache.WithLogger(l.Named("cache")),
	)
	a.health = handlers.NewHealth(checks)

	client := api.New(api.Options{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout,
		Logger:   l.Named("api"),
		Observer: a.metrics,
	})
	a.live = live.New(live.Options{
		API:      client,
		Cache:    a.cache,
		Metrics:  a.metrics,
		Logger:   l.Named("live"),
		Debounce: cfg.App.DebounceDelay,
		Revoke:   a.sessions.Revoke,
	})
	a.routes(client)

	a.handler = httpx.Recover(l)(
		logger.Middleware(l)(
			withLangCookie(
				a.sessions.Middleware(
					a.metrics.Middleware(a.mux)))))
	return a, nil
}

func (a *App) cacheStore(checks map[string]handlers.Check) (querycache.Store, error) {
	switch a.cfg.Cache.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Cache.RedisAddr,
			Password: a.cfg.Cache.RedisPassword,
			DB:       a.cfg.Cache.RedisDB,
		})
		store := querycache.NewRedis(rdb, cacheNamespace)
		if err := store.Ping(context.Background()); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect redis %s: %w", a.cfg.Cache.RedisAddr, err)
		}
		checks["cache"] = store.Ping
		a.closers = append(a.closers, rdb.Close)
		a.logger.Info("query cache on redis", zap.String("addr", a.cfg.Cache.RedisAddr))
		return store, nil
	default:
		return querycache.NewMemory(querycache.WithMaxSize(a.cfg.Cache.MaxEntries)), nil
	}
}

func (a *App) routes(client *api.Client) {
	l := a.logger.Named("http")
	auth := handlers.NewAuthHandler(client, a.sessions, l)
	pages := handlers.NewPageHandler(l)
	admin := handlers.NewAdminHandler(handlers.AdminOptions{
		API:      client,
		Cache:    a.cache,
		Sessions: a.sessions,
		Debounce: a.cfg.App.DebounceDelay,
		Logger:   l,
	})

	page := func(h http.HandlerFunc) http.Handler { return gzhttp.GzipHandler(h) }
	protected := func(h http.HandlerFunc) http.Handler { return session.Require(page(h)) }

	// Public
	a.mux.Handle("GET /{$}", page(auth.LoginPage))
	a.mux.HandleFunc("POST /login", auth.Login)
	a.mux.HandleFunc("GET /logout", auth.Logout)
	a.mux.HandleFunc("POST /logout", auth.Logout)

	// Navigation shell
	a.mux.Handle("GET /home", protected(pages.Home))
	a.mux.Handle("GET /home/{section}", protected(pages.Section))
	a.mux.Handle("GET /home/admin", protected(pages.Admin))

	// Administration
	a.mux.Handle("GET /home/admin/getListPermissions", protected(admin.Permissions))
	a.mux.Handle("GET /home/admin/getListPermissions/export", session.Require(http.HandlerFunc(admin.ExportPermissions)))
	a.mux.Handle("GET /home/admin/groupPermission", protected(admin.Groups))

	// Live views; never compressed, the connection is hijacked.
	a.mux.Handle("GET /live/permissions", session.Require(a.live.Permissions()))
	a.mux.Handle("GET /live/groups", session.Require(a.live.Groups()))

	// Operations
	a.mux.Handle("GET /healthz", a.health)
	a.mux.Handle("GET /metrics", a.metrics.Handler())
	a.mux.Handle("GET /static/", view.Static())
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Sessions exposes the session manager for the sweeper.
func (a *App) Sessions() *session.Manager { return a.sessions }

// Shutdown closes every live connection. It is registered on the server
// so hijacked connections are not left behind.
func (a *App) Shutdown() {
	a.live.Shutdown()
}

// Close releases the cache connection.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// withLangCookie remembers an explicit ?lang= choice.
func withLangCookie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get(view.LangCookie); q != "" && i18n.Supported(q) {
			http.SetCookie(w, &http.Cookie{
				Name:     view.LangCookie,
				Value:    q,
				Path:     "/",
				MaxAge:   86400 * 365,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r)
	})
}
