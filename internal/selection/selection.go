// Package selection implements the set of ids chosen in a picker.
package selection

import "sort"

// Set is an unordered set of entity ids.
type Set map[int64]struct{}

// New returns a set holding ids.
func New(ids ...int64) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is selected.
func (s Set) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Toggle adds id when absent and removes it when present. It returns the
// new membership of id.
func (s Set) Toggle(id int64) bool {
	if s.Has(id) {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

// Len returns the number of selected ids.
func (s Set) Len() int { return len(s) }

// IDs returns the ids in ascending order.
func (s Set) IDs() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Equal reports whether both sets hold the same ids.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

// Clear removes every id.
func (s Set) Clear() {
	for id := range s {
		delete(s, id)
	}
}
