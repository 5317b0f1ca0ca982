package console

import (
	"context"
	"errors"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/diewo77/rbac-console/internal/api"
	"github.com/diewo77/rbac-console/internal/debounce"
	"github.com/diewo77/rbac-console/internal/filter"
	"github.com/diewo77/rbac-console/internal/form"
	"github.com/diewo77/rbac-console/internal/models"
	"github.com/diewo77/rbac-console/internal/notify"
	"github.com/diewo77/rbac-console/internal/querycache"
	"github.com/diewo77/rbac-console/internal/rowstate"
	"github.com/diewo77/rbac-console/internal/selection"
)

// Toast and prompt codes of the groups page.
const (
	CodeGroupCreated      = "group.created"
	CodeGroupCreateFailed = "group.create_failed"
	CodeGroupDeleted      = "group.deleted"
	CodeGroupDeleteFailed = "group.delete_failed"
	CodeGroupConfirm      = "group.confirm_delete"
)

// Phase is the state of the group creation dialog.
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseEditing
	PhasePicking
)

func (p Phase) String() string {
	switch p {
	case PhaseEditing:
		return "editing"
	case PhasePicking:
		return "picking"
	default:
		return "closed"
	}
}

// GroupsView is the active group table, the creation dialog with its
// nested permission picker, and confirmed delete.
type GroupsView struct {
	loop *Loop
	deps Deps

	groups   collection[models.GroupList]
	deleting rowstate.Tracker
	confirm  int64

	phase       Phase
	name        string
	description string
	selected    selection.Set
	submitting  bool
	closeTimer  *clock.Timer
	closeGen    uint64

	picker          filter.Filter
	pickerNameInput string
	pickerNames     *debounce.Debouncer[string]
	permissions     collection[[]models.Permission]

	dirty bool
}

// NewGroupsView creates the view on loop. Call Load to fetch the groups.
func NewGroupsView(loop *Loop, deps Deps) *GroupsView {
	v := &GroupsView{
		loop:     loop,
		deps:     deps.withDefaults(),
		selected: selection.New(),
		picker:   filter.Filter{},
	}
	v.pickerNames = debounce.New(v.deps.Debounce, func(name string) {
		v.loop.Post(func() { v.settlePickerName(name) })
	}, debounce.WithClock(v.deps.Clock))
	return v
}

// Close stops the picker search and the pending dialog close.
func (v *GroupsView) Close() {
	v.pickerNames.Stop()
	v.stopCloseTimer()
}

func (v *GroupsView) changed() { v.dirty = true }

// TakeDirty reports whether state changed since the last call.
func (v *GroupsView) TakeDirty() bool {
	d := v.dirty
	v.dirty = false
	return d
}

// Phase returns the dialog phase.
func (v *GroupsView) Phase() Phase { return v.phase }

func (v *GroupsView) failed(op string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	v.deps.Logger.Warn("groups view: "+op+" failed", zap.Error(err))
	if api.IsUnauthorized(err) && v.deps.Unauthorized != nil {
		v.deps.Unauthorized()
	}
}

// Prime fetches the groups synchronously, for the first server-side
// render.
func (v *GroupsView) Prime(ctx context.Context) error {
	token := v.deps.Token
	key := GroupsKey(token)
	v.groups.seq++
	v.groups.key = key
	list, err := querycache.Fetch(ctx, v.deps.Cache, key, func(ctx context.Context) (models.GroupList, error) {
		return v.deps.API.ListGroups(ctx, token)
	})
	v.groups.loading = false
	v.groups.err = err
	if err == nil {
		v.groups.rows = list
	}
	v.changed()
	return err
}

// Load shows the group list.
func (v *GroupsView) Load() {
	token := v.deps.Token
	v.groups.load(v.loop, v.deps.Cache, GroupsKey(token),
		func(ctx context.Context) (models.GroupList, error) {
			return v.deps.API.ListGroups(ctx, token)
		},
		func(err error) {
			if err != nil {
				v.failed("list groups", err)
			}
			v.changed()
		})
	v.changed()
}

func (v *GroupsView) loadPicker() {
	f, token := v.picker.Clone(), v.deps.Token
	v.permissions.load(v.loop, v.deps.Cache, PermissionsKey(token, f),
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

// Open shows the creation dialog.
func (v *GroupsView) Open() {
	if v.phase != PhaseClosed {
		return
	}
	v.stopCloseTimer()
	v.phase = PhaseEditing
	v.changed()
}

// CloseDialog hides the dialog and the picker. Typed values and the
// selection are kept.
func (v *GroupsView) CloseDialog() {
	if v.phase == PhaseClosed {
		return
	}
	v.stopCloseTimer()
	v.pickerNames.Cancel()
	v.phase = PhaseClosed
	v.changed()
}

// SetName sets the group name while editing.
func (v *GroupsView) SetName(name string) {
	if v.phase != PhaseEditing {
		return
	}
	v.name = name
	v.changed()
}

// SetDescription sets the group description while editing.
func (v *GroupsView) SetDescription(desc string) {
	if v.phase != PhaseEditing {
		return
	}
	v.description = desc
	v.changed()
}

// ChoosePermissions opens the nested picker.
func (v *GroupsView) ChoosePermissions() {
	if v.phase != PhaseEditing {
		return
	}
	v.phase = PhasePicking
	v.loadPicker()
}

// DonePicking returns from the picker to the dialog.
func (v *GroupsView) DonePicking() {
	if v.phase != PhasePicking {
		return
	}
	v.pickerNames.Cancel()
	v.phase = PhaseEditing
	v.changed()
}

// TogglePermission adds or removes id from the selection.
func (v *GroupsView) TogglePermission(id int64) {
	if v.phase != PhasePicking {
		return
	}
	v.selected.Toggle(id)
	v.changed()
}

// Selected returns the selected ids in ascending order.
func (v *GroupsView) Selected() []int64 { return v.selected.IDs() }

// SetPickerFilter scopes the picker list. It never touches the URL or the
// group table.
func (v *GroupsView) SetPickerFilter(key, value string) {
	if v.phase != PhasePicking {
		return
	}
	if key == filter.KeyName {
		v.pickerNames.Cancel()
		v.pickerNameInput = value
	}
	if !v.picker.Set(key, value) {
		v.changed()
		return
	}
	v.loadPicker()
}

// TypePickerName records picker search input, debounced.
func (v *GroupsView) TypePickerName(value string) {
	if v.phase != PhasePicking || value == v.pickerNameInput {
		return
	}
	v.pickerNameInput = value
	v.changed()
	v.pickerNames.Push(value)
}

func (v *GroupsView) settlePickerName(name string) {
	if v.phase != PhasePicking || name == v.picker.Get(filter.KeyName) {
		return
	}
	v.picker.Set(filter.KeyName, name)
	v.loadPicker()
}

// Submit creates the group. On success the form is cleared and the dialog
// closes CloseAfterCreate later; on failure it stays open as is.
func (v *GroupsView) Submit() {
	if v.phase != PhaseEditing || v.submitting {
		return
	}
	v.submitting = true
	v.changed()

	in := models.NewGroup{Name: v.name, Description: v.description, PermissionIDs: v.selected.IDs()}
	ctx, token := v.loop.Context(), v.deps.Token
	go func() {
		_, err := v.deps.API.CreateGroup(ctx, token, in)
		if err == nil {
			v.deps.invalidate(context.WithoutCancel(ctx), ResourceGroups)
		}
		v.loop.Post(func() {
			v.submitting = false
			if err != nil {
				v.failed("create group", err)
				v.deps.Notify.Notify(notify.Toast{Kind: notify.Error, Code: CodeGroupCreateFailed})
				v.changed()
				return
			}
			v.name, v.description = "", ""
			v.selected.Clear()
			v.deps.Notify.Notify(notify.Toast{Kind: notify.Success, Code: CodeGroupCreated})
			v.scheduleClose()
			v.Load()
		})
	}()
}

func (v *GroupsView) scheduleClose() {
	v.stopCloseTimer()
	v.closeGen++
	gen := v.closeGen
	v.closeTimer = v.deps.Clock.AfterFunc(CloseAfterCreate, func() {
		v.loop.Post(func() {
			if gen != v.closeGen {
				return
			}
			v.closeTimer = nil
			v.CloseDialog()
		})
	})
}

func (v *GroupsView) stopCloseTimer() {
	v.closeGen++
	if v.closeTimer != nil {
		v.closeTimer.Stop()
		v.closeTimer = nil
	}
}

// Closing reports whether the dialog is about to close after a create.
func (v *GroupsView) Closing() bool { return v.closeTimer != nil }

// RequestDelete asks for confirmation before deleting a group.
func (v *GroupsView) RequestDelete(id int64) {
	if v.phase != PhaseClosed || v.deleting.IsPending(id) {
		return
	}
	v.confirm = id
	v.changed()
}

// CancelDelete drops the pending confirmation.
func (v *GroupsView) CancelDelete() {
	if v.confirm == 0 {
		return
	}
	v.confirm = 0
	v.changed()
}

// ConfirmDelete deletes the group awaiting confirmation.
func (v *GroupsView) ConfirmDelete() {
	id := v.confirm
	if id == 0 {
		return
	}
	v.confirm = 0
	if !v.deleting.Begin(id) {
		return
	}
	v.changed()

	ctx, token := v.loop.Context(), v.deps.Token
	go func() {
		err := v.deps.API.DeleteGroup(ctx, token, id)
		if err == nil {
			v.deps.invalidate(context.WithoutCancel(ctx), ResourceGroups)
		}
		v.loop.Post(func() {
			v.deleting.End(id)
			if err != nil {
				v.failed("delete group", err)
				v.deps.Notify.Notify(notify.Toast{Kind: notify.Error, Code: CodeGroupDeleteFailed})
			} else {
				v.deps.Notify.Notify(notify.Toast{Kind: notify.Success, Code: CodeGroupDeleted})
				v.Load()
			}
			v.changed()
		})
	}()
}

// GroupRow is one rendered group.
type GroupRow struct {
	models.Role
	Deleting bool
}

// PickerRow is one permission in the picker.
type PickerRow struct {
	models.Permission
	Selected bool
}

// PickerSnapshot is the rendered state of the permission picker.
type PickerSnapshot struct {
	NameInput       string
	ResourceOptions []form.Option
	ActionOptions   []form.Option
	Loading         bool
	Failed          bool
	Rows            []PickerRow
}

// GroupsSnapshot is everything the groups template needs.
type GroupsSnapshot struct {
	Loading     bool
	Failed      bool
	Groups      []GroupRow
	Columns     int
	Phase       string
	Name        string
	Description string
	SelectedIDs []int64
	Submitting  bool
	Closing     bool
	Picker      PickerSnapshot
	ConfirmID   int64
}

// Snapshot copies the state for rendering. Only active groups are listed.
func (v *GroupsView) Snapshot() GroupsSnapshot {
	s := GroupsSnapshot{
		Loading:     v.groups.loading,
		Failed:      v.groups.err != nil,
		Columns:     6,
		Phase:       v.phase.String(),
		Name:        v.name,
		Description: v.description,
		SelectedIDs: v.selected.IDs(),
		Submitting:  v.submitting,
		Closing:     v.Closing(),
		ConfirmID:   v.confirm,
	}
	if !s.Loading && !s.Failed {
		active := v.groups.rows.Active()
		s.Groups = make([]GroupRow, 0, len(active))
		for _, r := range active {
			s.Groups = append(s.Groups, GroupRow{Role: r, Deleting: v.deleting.IsPending(r.ID)})
		}
	}
	if v.phase == PhasePicking {
		p := PickerSnapshot{
			NameInput:       v.pickerNameInput,
			ResourceOptions: form.Options(models.Resources, v.picker.Get(filter.KeyResource)),
			ActionOptions:   form.Options(models.Actions, v.picker.Get(filter.KeyAction)),
			Loading:         v.permissions.loading,
			Failed:          v.permissions.err != nil,
		}
		if !p.Loading && !p.Failed {
			p.Rows = make([]PickerRow, 0, len(v.permissions.rows))
			for _, perm := range v.permissions.rows {
				p.Rows = append(p.Rows, PickerRow{Permission: perm, Selected: v.selected.Has(perm.ID)})
			}
		}
		s.Picker = p
	}
	return s
}
