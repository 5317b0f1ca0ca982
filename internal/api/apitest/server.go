// Package apitest runs an in-memory stand-in for the remote REST API.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/rbac-console/internal/api"
	"github.com/diewo77/rbac-console/internal/models"
)

// Token is the access token issued to every successful login.
const Token = "test-access-token"

// Server is a fake backend. The zero state holds a few permissions, two
// active groups and one inactive group.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	users       map[string]string
	permissions []models.Permission
	groups      []models.Role
	nextID      int64
	reject      bool
	expiration  time.Time
	calls       map[string]int
	lastQuery   string
}

// New starts a server closed at the end of the test.
func New(t testing.TB) *Server {
	s := &Server{
		users:  map[string]string{"admin@example.com": "secret"},
		nextID: 100,
		calls:  map[string]int{},
		permissions: []models.Permission{
			{ID: 1, Name: "user_create", Resource: "user", Action: "create"},
			{ID: 2, Name: "user_read", Resource: "user", Action: "read"},
			{ID: 3, Name: "invoice_delete", Resource: "invoice", Action: "delete"},
		},
		groups: []models.Role{
			{ID: 10, Name: "Operators", Description: "Field team", IsActive: true,
				Permissions: []models.Permission{{ID: 2, Name: "user_read", Resource: "user", Action: "read"}}},
			{ID: 11, Name: "Legacy", IsActive: false},
			{ID: 12, Name: "Billing", IsActive: true},
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.LoginPath, s.login)
	mux.HandleFunc("GET "+api.PermissionsPath, s.authed(api.OpListPermissions, s.listPermissions))
	mux.HandleFunc("POST "+api.PermissionsPath, s.authed(api.OpCreatePermission, s.createPermission))
	mux.HandleFunc("DELETE "+api.PermissionsPath+"/{id}", s.authed(api.OpDeletePermission, s.deletePermission))
	mux.HandleFunc("GET "+api.GroupsPath, s.authed(api.OpListGroups, s.listGroups))
	mux.HandleFunc("POST "+api.GroupsPath, s.authed(api.OpCreateGroup, s.createGroup))
	mux.HandleFunc("DELETE "+api.GroupsPath+"/{id}", s.authed(api.OpDeleteGroup, s.deleteGroup))
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Client returns an API client pointed at the server.
func (s *Server) Client() *api.Client {
	return api.New(api.Options{BaseURL: s.URL, Timeout: 5 * time.Second})
}

// RejectTokens makes every authenticated call answer 401.
func (s *Server) RejectTokens(on bool) {
	s.mu.Lock()
	s.reject = on
	s.mu.Unlock()
}

// SetExpiration sets the expiration returned by login. Zero omits it.
func (s *Server) SetExpiration(t time.Time) {
	s.mu.Lock()
	s.expiration = t
	s.mu.Unlock()
}

// Calls returns how many times op was served.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// LastQuery is the raw query of the last permission list call.
func (s *Server) LastQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// Permissions returns the stored permissions.
func (s *Server) Permissions() []models.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Permission(nil), s.permissions...)
}

// Groups returns the stored groups.
func (s *Server) Groups() []models.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Role(nil), s.groups...)
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (s *Server) authed(op string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[op]++
		reject := s.reject
		s.mu.Unlock()
		if reject || r.Header.Get("Authorization") != "Bearer "+Token {
			reply(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		reply(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	s.mu.Lock()
	s.calls[api.OpLogin]++
	pw, ok := s.users[creds.Email]
	exp := s.expiration
	s.mu.Unlock()
	if !ok || pw != creds.Password {
		reply(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}
	body := map[string]any{"access_token": Token}
	if !exp.IsZero() {
		body["expiration"] = exp.UTC().Format(time.RFC3339)
	}
	reply(w, http.StatusOK, body)
}

func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = r.URL.RawQuery
	out := []models.Permission{}
	for _, p := range s.permissions {
		if v := q.Get("resource"); v != "" && p.Resource != v {
			continue
		}
		if v := q.Get("action"); v != "" && p.Action != v {
			continue
		}
		if v := q.Get("name"); v != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(v)) {
			continue
		}
		out = append(out, p)
	}
	reply(w, http.StatusOK, out)
}

func (s *Server) createPermission(w http.ResponseWriter, r *http.Request) {
	var in models.NewPermission
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		reply(w, http.StatusBadRequest, map[string]string{"message": "name is required"})
		return
	}
	s.mu.Lock()
	s.nextID++
	p := models.Permission{ID: s.nextID, Name: in.Name, Resource: in.Resource, Action: in.Action}
	s.permissions = append(s.permissions, p)
	s.mu.Unlock()
	reply(w, http.StatusCreated, p)
}

func (s *Server) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		reply(w, http.StatusBadRequest, nil)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.permissions {
		if p.ID == id {
			s.permissions = append(s.permissions[:i], s.permissions[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	reply(w, http.StatusNotFound, map[string]string{"message": "not found"})
}

func (s *Server) listGroups(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply(w, http.StatusOK, models.GroupList{Founds: s.groups})
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var in models.NewGroup
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		reply(w, http.StatusBadRequest, map[string]string{"message": "name is required"})
		return
	}
	s.mu.Lock()
	s.nextID++
	g := models.Role{ID: s.nextID, Name: in.Name, Description: in.Description, IsActive: true}
	for _, id := range in.PermissionIDs {
		for _, p := range s.permissions {
			if p.ID == id {
				g.Permissions = append(g.Permissions, p)
			}
		}
	}
	s.groups = append(s.groups, g)
	s.mu.Unlock()
	reply(w, http.StatusCreated, g)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		reply(w, http.StatusBadRequest, nil)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, g := range s.groups {
		if g.ID == id {
			s.groups = append(s.groups[:i], s.groups[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	reply(w, http.StatusNotFound, map[string]string{"message": "not found"})
}
