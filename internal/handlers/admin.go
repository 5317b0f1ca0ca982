package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/diewo77/rbac-console/httpx"
	"github.com/diewo77/rbac-console/internal/api"
	"github.com/diewo77/rbac-console/internal/console"
	"github.com/diewo77/rbac-console/internal/export"
	"github.com/diewo77/rbac-console/internal/filter"
	"github.com/diewo77/rbac-console/internal/models"
	"github.com/diewo77/rbac-console/internal/querycache"
	"github.com/diewo77/rbac-console/session"
	"github.com/diewo77/rbac-console/view"
)

// AdminHandler renders the permission and group pages. The first render
// is complete HTML; the page then switches to its live view.
type AdminHandler struct {
	api      console.Backend
	cache    *querycache.Cache
	sessions *session.Manager
	debounce time.Duration
	logger   *zap.Logger
}

// AdminOptions configures an AdminHandler.
type AdminOptions struct {
	API      console.Backend
	Cache    *querycache.Cache
	Sessions *session.Manager
	Debounce time.Duration
	Logger   *zap.Logger
}

// NewAdminHandler returns a handler. Without a Cache it uses a private
// in-memory one.
func NewAdminHandler(opts AdminOptions) *AdminHandler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Cache == nil {
		opts.Cache = querycache.New(querycache.NewMemory())
	}
	return &AdminHandler{
		api:      opts.API,
		cache:    opts.Cache,
		sessions: opts.Sessions,
		debounce: opts.Debounce,
		logger:   opts.Logger,
	}
}

func (h *AdminHandler) deps(sess *models.Session) console.Deps {
	return console.Deps{
		API:      h.api,
		Cache:    h.cache,
		Token:    sess.AccessToken,
		Debounce: h.debounce,
		Logger:   h.logger,
	}
}

// prime runs fn on a throwaway loop.
func prime(ctx context.Context, fn func(l *console.Loop)) {
	l := console.NewLoop(ctx)
	defer l.Stop()
	l.Do(func() { fn(l) })
}

// expire ends a session whose token the backend rejected.
func (h *AdminHandler) expire(w http.ResponseWriter, r *http.Request, sess *models.Session) {
	h.logger.Info("access token rejected, ending session", zap.String("session_id", sess.ID))
	h.sessions.End(w, r)
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusUnauthorized, "session_expired", nil)
		return
	}
	http.Redirect(w, r, "/?expired=1", http.StatusSeeOther)
}

// Permissions renders the permission list for the URL filter.
func (h *AdminHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	var (
		snap console.PermissionsSnapshot
		rows []models.Permission
		err  error
	)
	prime(r.Context(), func(l *console.Loop) {
		v := console.NewPermissionsView(l, h.deps(sess))
		defer v.Close()
		err = v.Prime(r.Context(), r.URL.RawQuery)
		snap, rows = v.Snapshot(), v.Rows()
	})
	if api.IsUnauthorized(err) {
		h.expire(w, r, sess)
		return
	}
	if err != nil {
		h.logger.Warn("permission list failed", zap.Error(err))
	}

	if httpx.WantsJSON(r) {
		if err != nil {
			httpx.JSONError(w, http.StatusBadGateway, "upstream_error", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"query":       snap.Query,
			"permissions": rows,
		})
		return
	}
	renderPage(w, r, h.logger, http.StatusOK, "admin/permissions.html", map[string]any{"View": snap})
}

// ExportPermissions downloads the filtered list as a workbook.
func (h *AdminHandler) ExportPermissions(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	f := filter.FromQuery(r.URL.RawQuery)

	rows, err := querycache.Fetch(r.Context(), h.cache, console.PermissionsKey(sess.AccessToken, f), func(ctx context.Context) ([]models.Permission, error) {
		return h.api.ListPermissions(ctx, sess.AccessToken, f)
	})
	if api.IsUnauthorized(err) {
		h.expire(w, r, sess)
		return
	}
	if err != nil {
		h.logger.Warn("permission export failed", zap.Error(err))
		httpx.Fail(w, r, http.StatusBadGateway, "upstream_error")
		return
	}

	data, err := export.Permissions(view.Lang(r), rows)
	if err != nil {
		h.logger.Error("permission export failed", zap.Error(err))
		httpx.Fail(w, r, http.StatusInternalServerError, "export_failed")
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Groups renders the active groups.
func (h *AdminHandler) Groups(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	var (
		snap console.GroupsSnapshot
		err  error
	)
	prime(r.Context(), func(l *console.Loop) {
		v := console.NewGroupsView(l, h.deps(sess))
		defer v.Close()
		err = v.Prime(r.Context())
		snap = v.Snapshot()
	})
	if api.IsUnauthorized(err) {
		h.expire(w, r, sess)
		return
	}
	if err != nil {
		h.logger.Warn("group list failed", zap.Error(err))
	}

	if httpx.WantsJSON(r) {
		if err != nil {
			httpx.JSONError(w, http.StatusBadGateway, "upstream_error", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"groups": snap.Groups})
		return
	}
	renderPage(w, r, h.logger, http.StatusOK, "admin/groups.html", map[string]any{"View": snap})
}
