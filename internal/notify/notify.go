// Package notify carries user-facing notifications from view models to
// whatever presents them.
package notify

import "sync"

// Kind is the severity of a toast.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// Toast is one notification. Code is an i18n message code.
type Toast struct {
	Kind Kind   `json:"kind"`
	Code string `json:"code"`
}

// Sink receives toasts.
type Sink interface {
	Notify(Toast)
}

// Queue buffers toasts until they are drained. Safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	toasts []Toast
}

// Notify appends t.
func (q *Queue) Notify(t Toast) {
	q.mu.Lock()
	q.toasts = append(q.toasts, t)
	q.mu.Unlock()
}

// Drain returns the buffered toasts and empties the queue.
func (q *Queue) Drain() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.toasts
	q.toasts = nil
	return out
}

// Discard drops every toast.
type Discard struct{}

// Notify implements Sink.
func (Discard) Notify(Toast) {}
