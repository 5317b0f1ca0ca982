package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/diewo77/rbac-console/httpx"
	"github.com/diewo77/rbac-console/internal/api"
	"github.com/diewo77/rbac-console/session"
	"github.com/diewo77/rbac-console/validation"
)

// Authenticator exchanges credentials for an access token.
type Authenticator interface {
	Login(ctx context.Context, creds api.Credentials) (api.Token, error)
}

// AuthHandler serves the login page and the session lifecycle.
type AuthHandler struct {
	api      Authenticator
	sessions *session.Manager
	logger   *zap.Logger
}

// NewAuthHandler returns a handler logging to logger, or nowhere if nil.
func NewAuthHandler(a Authenticator, sessions *session.Manager, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{api: a, sessions: sessions, logger: logger}
}

// LoginPage shows the login form, or sends a signed-in user home.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := session.FromContext(r.Context()); ok {
		http.Redirect(w, r, HomePath, http.StatusSeeOther)
		return
	}
	data := map[string]any{"Errors": validation.Violations{}}
	if r.URL.Query().Get("expired") != "" {
		data["Notice"] = "login.expired"
	}
	h.render(w, r, http.StatusOK, data)
}

// Login validates the form, authenticates against the API and starts a
// session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.Fail(w, r, http.StatusBadRequest, "invalid_form")
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	errs := validation.Violations{}
	validation.Required("email", email, errs)
	validation.Email("email", email, errs)
	validation.MaxLen("email", email, 255, errs)
	validation.Required("password", password, errs)
	if !errs.Empty() {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", errs)
			return
		}
		h.render(w, r, http.StatusUnprocessableEntity, map[string]any{"Email": email, "Errors": errs})
		return
	}

	tok, err := h.api.Login(r.Context(), api.Credentials{Email: email, Password: password})
	if err != nil {
		status, code := http.StatusBadGateway, "login.unavailable"
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			status, code = http.StatusUnauthorized, "login.invalid"
		} else {
			h.logger.Error("login failed", zap.String("email", email), zap.Error(err))
		}
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, status, code, nil)
			return
		}
		h.render(w, r, status, map[string]any{"Email": email, "Error": code, "Errors": validation.Violations{}})
		return
	}

	if _, err := h.sessions.Start(r.Context(), w, email, tok.AccessToken, tok.ExpiresAt); err != nil {
		h.logger.Error("session start failed", zap.String("email", email), zap.Error(err))
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusBadGateway, "login.unavailable", nil)
			return
		}
		h.render(w, r, http.StatusBadGateway, map[string]any{"Email": email, "Error": "login.unavailable", "Errors": validation.Violations{}})
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]string{"redirect": HomePath})
		return
	}
	http.Redirect(w, r, HomePath, http.StatusSeeOther)
}

// Logout ends the session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.End(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) render(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	data["IsLoggedIn"] = false
	renderPage(w, r, h.logger, status, "login.html", data)
}
