package view

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/rbac-console/internal/console"
	"github.com/diewo77/rbac-console/internal/form"
	"github.com/diewo77/rbac-console/internal/models"
	"github.com/diewo77/rbac-console/session"
)

func permissionsSnapshot() console.PermissionsSnapshot {
	return console.PermissionsSnapshot{
		Query:           "resource=user",
		ResourceOptions: form.Options(models.Resources, "user"),
		ActionOptions:   form.Options(models.Actions, ""),
		Columns:         5,
		Rows: []console.PermissionRow{
			{Permission: models.Permission{ID: 7, Name: "user_create", Resource: "user", Action: "create"}, No: 1},
			{Permission: models.Permission{ID: 9, Name: "user_read", Resource: "user", Action: "read"}, No: 2, Deleting: true},
		},
		Dialog: console.DialogSnapshot{Inputs: form.NewPermission().Inputs()},
	}
}

func TestFragment_PermissionsRows(t *testing.T) {
	html, err := Fragment("en", "permissions-view", permissionsSnapshot())
	require.NoError(t, err)

	assert.Contains(t, html, "User Create")
	assert.Contains(t, html, `data-op="delete" data-id="7"`)
	assert.Contains(t, html, "Deleting...")
	assert.Contains(t, html, `export?resource=user`)
	assert.Contains(t, html, `<option value="user" selected>`)
	assert.NotContains(t, html, `role="dialog"`)
}

func TestFragment_PlaceholderRowsSpanAllColumns(t *testing.T) {
	s := permissionsSnapshot()
	s.Rows = nil
	s.Loading = true
	html, err := Fragment("en", "permissions-view", s)
	require.NoError(t, err)
	assert.Contains(t, html, `colspan="5"`)
	assert.Contains(t, html, "Loading...")

	s.Loading = false
	s.Rows = []console.PermissionRow{}
	html, err = Fragment("en", "permissions-view", s)
	require.NoError(t, err)
	assert.Contains(t, html, "No results found.")

	s.Failed = true
	html, err = Fragment("en", "permissions-view", s)
	require.NoError(t, err)
	assert.Contains(t, html, "Could not load the list.")
}

func TestFragment_PermissionDialog(t *testing.T) {
	s := permissionsSnapshot()
	s.Dialog.Open = true
	s.Dialog.Submitting = true
	html, err := Fragment("en", "permissions-view", s)
	require.NoError(t, err)
	assert.Contains(t, html, `role="dialog"`)
	assert.Contains(t, html, `id="dialog-name"`)
	assert.Contains(t, html, `id="dialog-resource"`)
	assert.Contains(t, html, "Saving...")
}

func TestFragment_Groups(t *testing.T) {
	s := console.GroupsSnapshot{
		Columns: 6,
		Phase:   "picking",
		Groups: []console.GroupRow{{Role: models.Role{ID: 3, Name: "Ops", IsActive: true,
			Permissions: []models.Permission{{ID: 1, Name: "user_read", Action: "read"}}}}},
		SelectedIDs: []int64{1, 4},
		ConfirmID:   3,
		Picker: console.PickerSnapshot{
			ResourceOptions: form.Options(models.Resources, ""),
			ActionOptions:   form.Options(models.Actions, ""),
			Rows:            []console.PickerRow{{Permission: models.Permission{ID: 4, Name: "invoice_read"}, Selected: true}},
		},
	}
	html, err := Fragment("en", "groups-view", s)
	require.NoError(t, err)
	assert.Contains(t, html, "Are you sure you want to delete this group?")
	assert.Contains(t, html, "1, 4")
	assert.Contains(t, html, "Select Permissions")
	assert.Contains(t, html, `data-op="toggle" data-id="4" checked`)
	assert.Contains(t, html, "User Read (read)")
}

func TestFragment_Translates(t *testing.T) {
	s := permissionsSnapshot()
	s.Rows = nil
	s.Loading = true
	html, err := Fragment("vi", "permissions-view", s)
	require.NoError(t, err)
	assert.NotContains(t, html, "Loading...")

	// the cached set must not keep the previous language
	html, err = Fragment("en", "permissions-view", s)
	require.NoError(t, err)
	assert.Contains(t, html, "Loading...")
}

func TestRender_Page(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/home/admin/getListPermissions", nil)
	r = r.WithContext(session.WithSession(r.Context(), &models.Session{ID: "x", Email: "ops@example.com", AccessToken: "t", ExpiresAt: time.Now().Add(time.Hour)}))
	rr := httptest.NewRecorder()

	err := Render(rr, r, "admin/permissions.html", map[string]any{"View": permissionsSnapshot()})
	require.NoError(t, err)
	body := rr.Body.String()
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "<!doctype html>"))
	assert.Contains(t, body, `data-live="/live/permissions"`)
	assert.Contains(t, body, "ops@example.com")
	assert.Contains(t, body, "/static/live.js?v=")
}

func TestRender_Login(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Language", "vi-VN,vi;q=0.9")
	rr := httptest.NewRecorder()
	err := Render(rr, r, "login.html", map[string]any{"Errors": map[string]string{"email": "required"}})
	require.NoError(t, err)
	body := rr.Body.String()
	assert.Contains(t, body, `lang="vi"`)
	assert.Contains(t, body, `action="/login"`)
	assert.NotContains(t, body, "/logout")
}

func TestRequestLang(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?lang=vi", nil)
	assert.Equal(t, "vi", RequestLang(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: LangCookie, Value: "vi"})
	assert.Equal(t, "vi", RequestLang(r))

	r = httptest.NewRequest(http.MethodGet, "/?lang=xx", nil)
	assert.Equal(t, "en", RequestLang(r))
}

func TestStatic(t *testing.T) {
	rr := httptest.NewRecorder()
	Static().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, Asset("app.css"), nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Cache-Control"), "immutable")

	assert.Equal(t, "/static/missing.js", Asset("missing.js"))
	assert.Equal(t, "https://cdn.example.com/x.js", Asset("https://cdn.example.com/x.js"))
}
