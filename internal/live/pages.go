package live

import (
	"errors"
	"fmt"

	"github.com/diewo77/rbac-console/internal/console"
	"github.com/diewo77/rbac-console/internal/filter"
	"github.com/diewo77/rbac-console/view"
)

// ErrUnknownOp is returned for events a view does not handle.
var ErrUnknownOp = errors.New("live: unknown op")

// page adapts a view model to the socket. Every method runs on the
// connection's loop.
type page interface {
	start(query string)
	dispatch(ev Event) error
	takeDirty() bool
	render(lang string) (string, error)
	query() *string
	close()
}

type pageFactory func(*console.Loop, console.Deps) page

type permissionsPage struct{ v *console.PermissionsView }

func newPermissionsPage(l *console.Loop, d console.Deps) page {
	return &permissionsPage{v: console.NewPermissionsView(l, d)}
}

func (p *permissionsPage) start(query string) { p.v.ApplyLocation(query) }
func (p *permissionsPage) takeDirty() bool { return p.v.TakeDirty() }
func (p *permissionsPage) close() { p.v.Close() }

func (p *permissionsPage) query() *string {
	q := p.v.Query()
	return &q
}

func (p *permissionsPage) render(lang string) (string, error) {
	return view.Fragment(lang, "permissions-view", p.v.Snapshot())
}

func (p *permissionsPage) dispatch(ev Event) error {
	switch ev.Op {
	case "filter":
		if !filter.IsKey(ev.Key) {
			return fmt.Errorf("live: filter key %q", ev.Key)
		}
		p.v.SetFilter(ev.Key, ev.Value)
	case "name":
		p.v.TypeName(ev.Value)
	case "navigate":
		p.v.ApplyLocation(ev.Value)
	case "delete":
		if ev.ID <= 0 {
			return fmt.Errorf("live: delete id %d", ev.ID)
		}
		p.v.Delete(ev.ID)
	case "dialog.open":
		p.v.OpenDialog()
	case "dialog.close":
		p.v.CloseDialog()
	case "dialog.field":
		return p.v.SetField(ev.Key, ev.Value)
	case "dialog.submit":
		p.v.Submit()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, ev.Op)
	}
	return nil
}

type groupsPage struct{ v *console.GroupsView }

func newGroupsPage(l *console.Loop, d console.Deps) page {
	return &groupsPage{v: console.NewGroupsView(l, d)}
}

func (p *groupsPage) start(string) { p.v.Load() }
func (p *groupsPage) takeDirty() bool { return p.v.TakeDirty() }
func (p *groupsPage) close() { p.v.Close() }
func (p *groupsPage) query() *string { return nil }

func (p *groupsPage) render(lang string) (string, error) {
	return view.Fragment(lang, "groups-view", p.v.Snapshot())
}

func (p *groupsPage) dispatch(ev Event) error {
	switch ev.Op {
	case "open":
		p.v.Open()
	case "close":
		p.v.CloseDialog()
	case "field":
		switch ev.Key {
		case "name":
			p.v.SetName(ev.Value)
		case "description":
			p.v.SetDescription(ev.Value)
		default:
			return fmt.Errorf("live: group field %q", ev.Key)
		}
	case "choose":
		p.v.ChoosePermissions()
	case "done":
		p.v.DonePicking()
	case "toggle":
		if ev.ID <= 0 {
			return fmt.Errorf("live: toggle id %d", ev.ID)
		}
		p.v.TogglePermission(ev.ID)
	case "picker.filter":
		if !filter.IsKey(ev.Key) {
			return fmt.Errorf("live: filter key %q", ev.Key)
		}
		p.v.SetPickerFilter(ev.Key, ev.Value)
	case "picker.name":
		p.v.TypePickerName(ev.Value)
	case "submit":
		p.v.Submit()
	case "delete":
		if ev.ID <= 0 {
			return fmt.Errorf("live: delete id %d", ev.ID)
		}
		p.v.RequestDelete(ev.ID)
	case "delete.confirm":
		p.v.ConfirmDelete()
	case "delete.cancel":
		p.v.CancelDelete()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, ev.Op)
	}
	return nil
}
