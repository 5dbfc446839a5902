// Package loop runs the widget's turns one at a time on a single goroutine.
// Host notifications, UI callbacks and write completions are all turns;
// nothing else touches the reactive graph.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/petermattis/goid"
)

var ErrClosed = errors.New("loop: closed")

type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}

	// goroutine currently owning the loop
	gid atomic.Int64
}

// New creates a loop owned by the calling goroutine until Run or Drain is
// called from another one.
func New() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	l.gid.Store(goid.Get())
	return l
}

// OnLoop reports whether the caller runs on the loop goroutine.
func (l *Loop) OnLoop() bool {
	return goid.Get() == l.gid.Load()
}

// Post queues fn as a new turn.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Do runs fn right away when called on the loop goroutine, otherwise queues
// it as a turn.
func (l *Loop) Do(fn func()) {
	if l.OnLoop() {
		fn()
		return
	}
	if err := l.Post(fn); err != nil {
		glog.V(2).Infof("[loop]dropped turn: %v", err)
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// Drain claims the loop for the calling goroutine and runs queued turns,
// including turns queued by those turns, until the queue is empty. It
// returns the number of turns run.
func (l *Loop) Drain() int {
	l.gid.Store(goid.Get())

	n := 0
	for {
		fn, ok := l.next()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

// Run claims the loop for the calling goroutine and runs turns until ctx is
// done or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	l.gid.Store(goid.Get())
	glog.V(1).Infof("[loop]running on goroutine %d", l.gid.Load())

	for {
		l.Drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			l.Drain()
			return nil
		case <-l.wake:
		}
	}
}

// Close stops accepting turns. A running loop finishes the queued turns and
// returns.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
}
