// Package console holds the view models behind the admin pages.
//
// A view model is owned by one Loop. Every method that reads or changes
// view state must run on that loop; results of background requests are
// posted back to it.
package console

import (
	"context"
	"sync"
)

const loopQueue = 64

// Loop runs tasks one at a time on its own goroutine.
type Loop struct {
	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan func()
	done   chan struct{}
	after  func()
	once   sync.Once
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithAfterTurn runs fn on the loop after every task. Live connections use
// it to push one render per turn however many changes the task made.
func WithAfterTurn(fn func()) LoopOption {
	return func(l *Loop) { l.after = fn }
}

// NewLoop starts a loop. It stops when parent is cancelled or Stop is
// called.
func NewLoop(parent context.Context, opts ...LoopOption) *Loop {
	ctx, cancel := context.WithCancel(parent)
	l := &Loop{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(chan func(), loopQueue),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case fn := <-l.tasks:
			fn()
			if l.after != nil {
				l.after()
			}
		}
	}
}

// Context is cancelled when the loop stops. Requests started by views use
// it so their results can be recognised as orphaned.
func (l *Loop) Context() context.Context { return l.ctx }

// Post enqueues fn. It returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.ctx.Done():
		return false
	default:
	}
	select {
	case <-l.ctx.Done():
		return false
	case l.tasks <- fn:
		return true
	}
}

// Do runs fn on the loop and waits for it. It must not be called from the
// loop itself. It returns false when fn did not run.
func (l *Loop) Do(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}

// Stop ends the loop and waits for the running task to return. Queued
// tasks are dropped.
func (l *Loop) Stop() {
	l.once.Do(l.cancel)
	<-l.done
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }
