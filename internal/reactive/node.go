package reactive

import "slices"

// Node is the part shared by cells and derived cells: a value, the
// subscribers reading it and the listeners watching it.
type Node struct {
	rt *Runtime

	value any
	// bumped on every change of value
	version uint64

	// the current height of the node in the dependency graph, 0 for cells
	height int

	subsHead *DependencyLink

	listeners listenerSet
}

// Value returns the current value without tracking.
func (n *Node) Value() any {
	return n.value
}

// AddListener registers fn to be called with every new value. Listeners
// fire in registration order. The returned function removes the listener;
// it is also removed when the owner current at registration is disposed.
func (n *Node) AddListener(fn func(any)) (remove func()) {
	l := n.listeners.add(fn)
	remove = func() { n.listeners.remove(l) }

	if owner := n.rt.tracker.CurrentOwner(); owner != nil {
		owner.OnCleanup(remove)
	}

	return remove
}

type listener struct {
	fn     func(any)
	active bool
}

// listenerSet is an ordered set of listeners. Removal flips the active flag
// first so that a listener removed during notification is skipped for the
// rest of that notification.
type listenerSet struct {
	items []*listener
}

func (s *listenerSet) add(fn func(any)) *listener {
	l := &listener{fn: fn, active: true}
	s.items = append(s.items, l)
	return l
}

func (s *listenerSet) remove(l *listener) {
	if !l.active {
		return
	}
	l.active = false

	if i := slices.Index(s.items, l); i >= 0 {
		s.items = slices.Delete(s.items, i, i+1)
	}
}

// notify calls the listeners with the current value for the change
// numbered version. It stops once a listener changes n again: the nested
// propagation has already notified every listener of the newer value.
func (n *Node) notify(version uint64) {
	// clonning to avoid mutation during iteration
	for _, l := range slices.Clone(n.listeners.items) {
		if n.version != version {
			return
		}
		if l.active {
			l.fn(n.value)
		}
	}
}

func (s *listenerSet) clear() {
	for _, l := range s.items {
		l.active = false
	}
	s.items = nil
}

func (s *listenerSet) len() int {
	return len(s.items)
}
