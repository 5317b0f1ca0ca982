package console

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/rbac-console/internal/api"
	"github.com/diewo77/rbac-console/internal/filter"
	"github.com/diewo77/rbac-console/internal/models"
	"github.com/diewo77/rbac-console/internal/notify"
	"github.com/diewo77/rbac-console/internal/querycache"
)

var errBackend = errors.New("backend down")

type fakeBackend struct {
	mu          sync.Mutex
	permissions []models.Permission
	groups      []models.Role
	nextID      int64

	listCalls  []string
	groupCalls int
	created    []models.NewPermission
	newGroups  []models.NewGroup
	deleted    []int64
	tokens     []string

	failList   error
	failCreate error
	failDelete error
	// gate, when set, blocks a call until the returned channel closes.
	gate func(op string, arg string) <-chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nextID: 100,
		permissions: []models.Permission{
			{ID: 1, Name: "user_create", Resource: "user", Action: "create"},
			{ID: 2, Name: "user_read", Resource: "user", Action: "read"},
			{ID: 3, Name: "invoice_delete", Resource: "invoice", Action: "delete"},
			{ID: 4, Name: "admin_read", Resource: "installation", Action: "read"},
		},
		groups: []models.Role{
			{ID: 10, Name: "ops", IsActive: true, Permissions: []models.Permission{{ID: 2, Name: "user_read", Action: "read"}}},
			{ID: 11, Name: "legacy", IsActive: false},
			{ID: 12, Name: "billing", IsActive: true},
		},
	}
}

func (b *fakeBackend) wait(op, arg string) {
	b.mu.Lock()
	gate := b.gate
	b.mu.Unlock()
	if gate == nil {
		return
	}
	if ch := gate(op, arg); ch != nil {
		<-ch
	}
}

func (b *fakeBackend) ListPermissions(_ context.Context, token string, f filter.Filter) ([]models.Permission, error) {
	b.wait("list", f.Encode())
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, token)
	b.listCalls = append(b.listCalls, f.Encode())
	if b.failList != nil {
		return nil, b.failList
	}
	out := []models.Permission{}
	for _, p := range b.permissions {
		if r := f.Get(filter.KeyResource); r != "" && p.Resource != r {
			continue
		}
		if a := f.Get(filter.KeyAction); a != "" && p.Action != a {
			continue
		}
		if n := f.Get(filter.KeyName); n != "" && !strings.Contains(p.Name, n) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (b *fakeBackend) CreatePermission(_ context.Context, token string, in models.NewPermission) (*models.Permission, error) {
	b.wait("create", in.Name)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, token)
	b.created = append(b.created, in)
	if b.failCreate != nil {
		return nil, b.failCreate
	}
	b.nextID++
	p := models.Permission{ID: b.nextID, Name: in.Name, Resource: in.Resource, Action: in.Action}
	b.permissions = append(b.permissions, p)
	return &p, nil
}

func (b *fakeBackend) DeletePermission(_ context.Context, token string, id int64) error {
	b.wait("delete", "")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, token)
	b.deleted = append(b.deleted, id)
	if b.failDelete != nil {
		return b.failDelete
	}
	for i, p := range b.permissions {
		if p.ID == id {
			b.permissions = append(b.permissions[:i], b.permissions[i+1:]...)
			break
		}
	}
	return nil
}

func (b *fakeBackend) ListGroups(_ context.Context, token string) (models.GroupList, error) {
	b.wait("groups", "")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, token)
	b.groupCalls++
	if b.failList != nil {
		return models.GroupList{}, b.failList
	}
	return models.GroupList{Founds: append([]models.Role(nil), b.groups...)}, nil
}

func (b *fakeBackend) CreateGroup(_ context.Context, token string, in models.NewGroup) (*models.Role, error) {
	b.wait("create-group", in.Name)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, token)
	b.newGroups = append(b.newGroups, in)
	if b.failCreate != nil {
		return nil, b.failCreate
	}
	b.nextID++
	r := models.Role{ID: b.nextID, Name: in.Name, Description: in.Description, IsActive: true}
	b.groups = append(b.groups, r)
	return &r, nil
}

func (b *fakeBackend) DeleteGroup(_ context.Context, token string, id int64) error {
	b.wait("delete-group", "")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, token)
	b.deleted = append(b.deleted, id)
	if b.failDelete != nil {
		return b.failDelete
	}
	for i, r := range b.groups {
		if r.ID == id {
			b.groups = append(b.groups[:i], b.groups[i+1:]...)
			break
		}
	}
	return nil
}

func (b *fakeBackend) calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.listCalls...)
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

type harness struct {
	loop    *Loop
	backend *fakeBackend
	clock   *clock.Mock
	toasts  *notify.Queue
	deps    Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		loop:    NewLoop(context.Background()),
		backend: newFakeBackend(),
		clock:   clock.NewMock(),
		toasts:  &notify.Queue{},
	}
	t.Cleanup(h.loop.Stop)
	h.deps = Deps{
		API:      h.backend,
		Cache:    querycache.New(querycache.NewMemory()),
		Token:    "token-1",
		Notify:   h.toasts,
		Clock:    h.clock,
		Debounce: 500 * time.Millisecond,
	}
	return h
}

// on runs fn on the loop and fails the test if it could not.
func (h *harness) on(t *testing.T, fn func()) {
	t.Helper()
	require.True(t, h.loop.Do(fn), "loop stopped")
}

// eventually polls cond on the loop.
func (h *harness) eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, func() bool {
		var ok bool
		if !h.loop.Do(func() { ok = cond() }) {
			return false
		}
		return ok
	}, 2*time.Second, 5*time.Millisecond, msg)
}

func gateFor(op string, ch chan struct{}) func(string, string) <-chan struct{} {
	return func(o, _ string) <-chan struct{} {
		if o == op {
			return ch
		}
		return nil
	}
}

func unauthorized() error {
	return &api.Error{Op: "test", Status: 401}
}
