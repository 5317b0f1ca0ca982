package console

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/diewo77/rbac-console/internal/api"
	"github.com/diewo77/rbac-console/internal/debounce"
	"github.com/diewo77/rbac-console/internal/filter"
	"github.com/diewo77/rbac-console/internal/form"
	"github.com/diewo77/rbac-console/internal/models"
	"github.com/diewo77/rbac-console/internal/notify"
	"github.com/diewo77/rbac-console/internal/querycache"
	"github.com/diewo77/rbac-console/internal/rowstate"
)

// Toast codes of the permissions page.
const (
	CodePermissionAdded        = "permission.added"
	CodePermissionAddFailed    = "permission.add_failed"
	CodePermissionDeleted      = "permission.deleted"
	CodePermissionDeleteFailed = "permission.delete_failed"
)

// PermissionsView is the permission list with its URL filter, debounced
// name search, per-row delete and create dialog.
type PermissionsView struct {
	loop *Loop
	deps Deps

	filter    filter.Filter
	nameInput string
	names     *debounce.Debouncer[string]

	list     collection[[]models.Permission]
	deleting rowstate.Tracker

	dialogOpen bool
	submitting bool
	form       *form.Form

	dirty bool
}

// NewPermissionsView creates the view on loop. Call ApplyLocation to load
// the first page.
func NewPermissionsView(loop *Loop, deps Deps) *PermissionsView {
	v := &PermissionsView{
		loop:   loop,
		deps:   deps.withDefaults(),
		filter: filter.Filter{},
		form:   form.NewPermission(),
	}
	v.names = debounce.New(v.deps.Debounce, func(name string) {
		v.loop.Post(func() { v.settleName(name) })
	}, debounce.WithClock(v.deps.Clock))
	return v
}

// Close cancels the pending name search.
func (v *PermissionsView) Close() { v.names.Stop() }

func (v *PermissionsView) changed() { v.dirty = true }

// TakeDirty reports whether state changed since the last call.
func (v *PermissionsView) TakeDirty() bool {
	d := v.dirty
	v.dirty = false
	return d
}

// Query is the URL query encoding the current filter.
func (v *PermissionsView) Query() string { return v.filter.Encode() }

// Filter returns a copy of the current filter.
func (v *PermissionsView) Filter() filter.Filter { return v.filter.Clone() }

// ApplyLocation replaces the filter with the one in query, as on first load
// or browser back/forward, and reloads when it differs. The search box
// follows the URL and any unsettled typing is dropped.
func (v *PermissionsView) ApplyLocation(query string) {
	next := filter.FromQuery(query)
	v.names.Cancel()
	if v.nameInput != next.Get(filter.KeyName) {
		v.nameInput = next.Get(filter.KeyName)
		v.changed()
	}
	if next.Equal(v.filter) && v.list.seq > 0 {
		return
	}
	v.filter = next
	v.Load()
}

// SetFilter sets one filter key; an empty value removes it.
func (v *PermissionsView) SetFilter(key, value string) {
	if key == filter.KeyName {
		v.names.Cancel()
		v.nameInput = value
	}
	if !v.filter.Set(key, value) {
		v.changed()
		return
	}
	v.Load()
}

// TypeName records search box input. Only the value that stays unchanged
// for the debounce delay reaches the filter.
func (v *PermissionsView) TypeName(value string) {
	if value == v.nameInput {
		return
	}
	v.nameInput = value
	v.changed()
	v.names.Push(value)
}

func (v *PermissionsView) settleName(name string) {
	if name == v.filter.Get(filter.KeyName) {
		return
	}
	v.filter.Set(filter.KeyName, name)
	v.Load()
}

// Prime applies query and fetches its list synchronously, for the first
// server-side render. It blocks the loop for the duration of the fetch.
func (v *PermissionsView) Prime(ctx context.Context, query string) error {
	v.filter = filter.FromQuery(query)
	v.nameInput = v.filter.Get(filter.KeyName)
	f, token := v.filter.Clone(), v.deps.Token
	key := PermissionsKey(token, f)

	v.list.seq++
	v.list.key = key
	rows, err := querycache.Fetch(ctx, v.deps.Cache, key, func(ctx context.Context) ([]models.Permission, error) {
		return v.deps.API.ListPermissions(ctx, token, f)
	})
	v.list.loading = false
	v.list.err = err
	if err == nil {
		v.list.rows = rows
	}
	v.changed()
	return err
}

// Load shows the list for the current filter.
func (v *PermissionsView) Load() {
	f := v.filter.Clone()
	token := v.deps.Token
	v.list.load(v.loop, v.deps.Cache, PermissionsKey(token, f),
		func(ctx context.Context) ([]models.Permission, error) {
			return v.deps.API.ListPermissions(ctx, token, f)
		},
		func(err error) {
			if err != nil {
				v.failed("list permissions", err)
			}
			v.changed()
		})
	v.changed()
}

func (v *PermissionsView) failed(op string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	v.deps.Logger.Warn("permissions view: "+op+" failed", zap.Error(err))
	if api.IsUnauthorized(err) && v.deps.Unauthorized != nil {
		v.deps.Unauthorized()
	}
}

// Delete removes a permission. A second delete for an id already in
// flight is ignored.
func (v *PermissionsView) Delete(id int64) {
	if !v.deleting.Begin(id) {
		return
	}
	v.changed()
	ctx, token := v.loop.Context(), v.deps.Token
	go func() {
		err := v.deps.API.DeletePermission(ctx, token, id)
		if err == nil {
			v.deps.invalidate(context.WithoutCancel(ctx), ResourcePermissions)
		}
		v.loop.Post(func() {
			v.deleting.End(id)
			if err != nil {
				v.failed("delete permission", err)
				v.deps.Notify.Notify(notify.Toast{Kind: notify.Error, Code: CodePermissionDeleteFailed})
			} else {
				v.deps.Notify.Notify(notify.Toast{Kind: notify.Success, Code: CodePermissionDeleted})
				v.Load()
			}
			v.changed()
		})
	}()
}

// OpenDialog shows the create dialog.
func (v *PermissionsView) OpenDialog() {
	if v.dialogOpen {
		return
	}
	v.dialogOpen = true
	v.changed()
}

// CloseDialog hides the create dialog. Values typed so far are kept.
func (v *PermissionsView) CloseDialog() {
	if !v.dialogOpen {
		return
	}
	v.dialogOpen = false
	v.changed()
}

// SetField stores a dialog value.
func (v *PermissionsView) SetField(name, value string) error {
	if !v.dialogOpen {
		return nil
	}
	if err := v.form.Set(name, value); err != nil {
		return err
	}
	v.changed()
	return nil
}

// Submit sends the dialog values. The dialog closes and resets on success
// and stays open with its values on failure.
func (v *PermissionsView) Submit() {
	if !v.dialogOpen || v.submitting {
		return
	}
	v.submitting = true
	v.changed()

	in := v.form.Permission()
	ctx, token := v.loop.Context(), v.deps.Token
	go func() {
		_, err := v.deps.API.CreatePermission(ctx, token, in)
		if err == nil {
			v.deps.invalidate(context.WithoutCancel(ctx), ResourcePermissions)
		}
		v.loop.Post(func() {
			v.submitting = false
			if err != nil {
				v.failed("create permission", err)
				v.deps.Notify.Notify(notify.Toast{Kind: notify.Error, Code: CodePermissionAddFailed})
			} else {
				v.form.Reset()
				v.dialogOpen = false
				v.deps.Notify.Notify(notify.Toast{Kind: notify.Success, Code: CodePermissionAdded})
				v.Load()
			}
			v.changed()
		})
	}()
}

// PermissionRow is one rendered table row.
type PermissionRow struct {
	models.Permission
	No       int
	Deleting bool
}

// DialogSnapshot is the rendered state of the create dialog.
type DialogSnapshot struct {
	Open       bool
	Submitting bool
	Inputs     []form.Input
}

// PermissionsSnapshot is everything the permissions template needs.
type PermissionsSnapshot struct {
	Query           string
	NameInput       string
	ResourceOptions []form.Option
	ActionOptions   []form.Option
	Loading         bool
	Failed          bool
	Rows            []PermissionRow
	Columns         int
	Dialog          DialogSnapshot
}

// Snapshot copies the state for rendering.
func (v *PermissionsView) Snapshot() PermissionsSnapshot {
	s := PermissionsSnapshot{
		Query:           v.Query(),
		NameInput:       v.nameInput,
		ResourceOptions: form.Options(models.Resources, v.filter.Get(filter.KeyResource)),
		ActionOptions:   form.Options(models.Actions, v.filter.Get(filter.KeyAction)),
		Loading:         v.list.loading,
		Failed:          v.list.err != nil,
		Columns:         5,
		Dialog: DialogSnapshot{
			Open:       v.dialogOpen,
			Submitting: v.submitting,
			Inputs:     v.form.Inputs(),
		},
	}
	if !s.Loading && !s.Failed {
		s.Rows = make([]PermissionRow, 0, len(v.list.rows))
		for i, p := range v.list.rows {
			s.Rows = append(s.Rows, PermissionRow{Permission: p, No: i + 1, Deleting: v.deleting.IsPending(p.ID)})
		}
	}
	return s
}

// Rows returns the last loaded permissions.
func (v *PermissionsView) Rows() []models.Permission { return v.list.rows }
