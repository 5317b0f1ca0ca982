package models

// Role is a group of permissions. The API calls them groups.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	IsActive    bool         `json:"is_active"`
	Permissions []Permission `json:"permissions"`
}

// GroupList is the envelope returned by GET /groups.
type GroupList struct {
	Founds []Role `json:"founds"`
}

// Active returns the active roles, preserving order.
func (l GroupList) Active() []Role {
	out := make([]Role, 0, len(l.Founds))
	for _, r := range l.Founds {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out
}

// NewGroup is the body of a group creation request. The API resolves
// PermissionIDs into the association itself.
type NewGroup struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	PermissionIDs []int64 `json:"permission_ids"`
}
