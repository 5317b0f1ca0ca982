// Package rowstate tracks in-flight requests per table row.
package rowstate

import (
	"sort"
	"sync"
)

// State is the request state of one row.
type State int

const (
	// Idle means no request is in flight for the row.
	Idle State = iota
	// Pending means a request was issued and has not settled.
	Pending
)

// Tracker maps entity ids to their request state. Several rows can be
// pending at once. The zero value is ready to use.
type Tracker struct {
	mu   sync.Mutex
	rows map[int64]State
}

// Begin marks id pending. It returns false when id is already pending,
// so callers can drop duplicate requests.
func (t *Tracker) Begin(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rows == nil {
		t.rows = make(map[int64]State)
	}
	if t.rows[id] == Pending {
		return false
	}
	t.rows[id] = Pending
	return true
}

// End clears the marker of id, whatever the outcome of its request.
func (t *Tracker) End(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, id)
}

// State returns the state of id.
func (t *Tracker) State(id int64) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows[id]
}

// IsPending reports whether id has a request in flight.
func (t *Tracker) IsPending(id int64) bool { return t.State(id) == Pending }

// Pending returns the pending ids in ascending order.
func (t *Tracker) Pending() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int64, 0, len(t.rows))
	for id, s := range t.rows {
		if s == Pending {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
