package handlers

import (
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/diewo77/rbac-console/view"
)

// HomePath is where signed-in users land.
const HomePath = "/home"

// Sections are the business areas of the navigation shell.
var Sections = []string{"main", "projectmanagement", "tracking", "deliveryorder", "files"}

func renderPage(w http.ResponseWriter, r *http.Request, l *zap.Logger, status int, name string, data map[string]any) {
	if err := view.RenderStatus(w, r, status, name, data); err != nil {
		l.Error("render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// PageHandler serves the navigation shell.
type PageHandler struct {
	logger *zap.Logger
}

// NewPageHandler returns a handler logging to logger, or nowhere if nil.
func NewPageHandler(logger *zap.Logger) *PageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageHandler{logger: logger}
}

// Home sends users to the main section.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, HomePath+"/main", http.StatusSeeOther)
}

// Section shows one business section.
func (h *PageHandler) Section(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("section")
	if !slices.Contains(Sections, name) {
		http.NotFound(w, r)
		return
	}
	renderPage(w, r, h.logger, http.StatusOK, "home/section.html", map[string]any{"Section": name})
}

// Admin is the administration landing page.
func (h *PageHandler) Admin(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, h.logger, http.StatusOK, "admin/index.html", nil)
}
