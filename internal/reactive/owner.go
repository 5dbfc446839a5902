package reactive

import (
	"errors"
	"fmt"
	"iter"
)

// ErrPanic wraps a panic recovered by an owner with error listeners.
var ErrPanic = errors.New("reactive: recovered panic")

// Owner manages the lifecycle of everything created while it is current:
// derived cells, listeners, cleanups and child owners. Disposing an owner
// releases all of them.
type Owner struct {
	rt *Runtime

	// cleanup functions to be called when the owner is disposed
	cleanups []func()

	// panic error handlers
	catchers []func(any)

	disposed bool

	parent       *Owner
	prevSibling  *Owner
	nextSibling  *Owner
	childrenHead *Owner
}

// NewOwner creates an owner as a child of the current owner.
func (r *Runtime) NewOwner() *Owner {
	o := &Owner{rt: r}
	if parent := r.tracker.CurrentOwner(); parent != nil {
		parent.AddChild(o)
	}
	return o
}

// NewChild creates an owner under o regardless of the current owner.
func (o *Owner) NewChild() *Owner {
	child := &Owner{rt: o.rt}
	if o.disposed {
		child.disposed = true
		return child
	}
	o.AddChild(child)
	return child
}

// Run calls fn with o as the current owner. A panic inside fn is handed to
// the OnError listeners and returned as an ErrPanic error; without listeners
// it propagates. Cycle panics always propagate.
func (o *Owner) Run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if !o.catch(r) {
				panic(r)
			}
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	o.rt.tracker.RunWithOwner(o, func() {
		err = fn()
	})
	return err
}

// catch hands r to the nearest owner (o or an ancestor) listening for
// errors. It reports whether someone did.
func (o *Owner) catch(r any) bool {
	if e, ok := r.(error); ok && errors.Is(e, ErrCycle) {
		return false
	}

	for owner := o; owner != nil; owner = owner.parent {
		if len(owner.catchers) == 0 {
			continue
		}
		for _, catcher := range owner.catchers {
			catcher(r)
		}
		return true
	}
	return false
}

func (parent *Owner) AddChild(child *Owner) {
	child.parent = parent
	child.prevSibling = nil
	child.nextSibling = parent.childrenHead

	if parent.childrenHead != nil {
		parent.childrenHead.prevSibling = child
	}

	parent.childrenHead = child
}

func (parent *Owner) removeChild(child *Owner) {
	if child.prevSibling != nil {
		child.prevSibling.nextSibling = child.nextSibling
	} else if parent.childrenHead == child {
		parent.childrenHead = child.nextSibling
	}
	if child.nextSibling != nil {
		child.nextSibling.prevSibling = child.prevSibling
	}

	child.parent = nil
	child.prevSibling = nil
	child.nextSibling = nil
}

func (o *Owner) Children() iter.Seq[*Owner] {
	return func(yield func(*Owner) bool) {
		child := o.childrenHead

		for child != nil {
			next := child.nextSibling
			if !yield(child) {
				return
			}

			child = next
		}
	}
}

// Dispose disposes the children, newest first, then runs the cleanups in
// reverse registration order. Disposing twice is a no-op.
func (o *Owner) Dispose() {
	if o.disposed {
		return
	}
	o.disposed = true

	o.DisposeChildren()

	cleanups := o.cleanups
	o.cleanups = nil
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}

	if o.parent != nil {
		o.parent.removeChild(o)
	}
}

func (o *Owner) DisposeChildren() {
	for child := range o.Children() {
		child.Dispose()
	}
	o.childrenHead = nil
}

// Disposed reports whether Dispose was called.
func (o *Owner) Disposed() bool {
	return o.disposed
}

// OnCleanup registers fn to run once when the owner is disposed. On an
// already disposed owner fn runs immediately.
func (o *Owner) OnCleanup(fn func()) {
	if o.disposed {
		fn()
		return
	}
	o.cleanups = append(o.cleanups, fn)
}

// OnError registers a listener for panics raised inside Run.
func (o *Owner) OnError(fn func(any)) {
	o.catchers = append(o.catchers, fn)
}
