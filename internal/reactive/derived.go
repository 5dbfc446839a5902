package reactive

// Reader is handed to a derived cell's compute function. Every Read through
// it registers a dependency for the current recomputation only.
type Reader struct {
	sub  *derivedNode
	done bool
}

// Read returns the value of s and records it as a dependency.
func (r *Reader) Read(s Source) any {
	n := s.source()
	if r != nil && !r.done && !r.sub.disposed {
		link(r.sub, n)
	}
	return n.value
}

type derivedNode struct {
	Node

	compute func(*Reader) any

	depsHead *DependencyLink

	owner *Owner

	inHeap   bool
	disposed bool
}

func (d *derivedNode) source() *Node { return &d.Node }

// newDerived creates a derived cell, computes it once and attaches it to
// the current owner.
func (r *Runtime) newDerived(compute func(*Reader) any) *derivedNode {
	d := &derivedNode{
		Node:    Node{rt: r, height: 1},
		compute: compute,
		owner:   r.tracker.CurrentOwner(),
	}

	d.owner.OnCleanup(d.Dispose)
	d.recompute()

	return d
}

// recompute runs compute with a fresh dependency set and reports whether
// the value changed. A panic in compute is routed to the owner's error
// listeners when there are any, keeping the previous value.
func (d *derivedNode) recompute() (changed bool) {
	if d.disposed {
		return false
	}

	old := d.value

	d.ClearDeps()
	d.height = 1

	reader := &Reader{sub: d}
	defer func() { reader.done = true }()

	defer func() {
		if r := recover(); r != nil {
			if !d.owner.catch(r) {
				panic(r)
			}
			d.value = old
			changed = false
		}
	}()

	d.rt.tracker.RunWithOwner(d.owner, func() {
		d.value = d.compute(reader)
	})

	return !identical(old, d.value)
}

// Dispose detaches the derived cell from the graph. It stops recomputing and
// its listeners are dropped.
func (d *derivedNode) Dispose() {
	if d.disposed {
		return
	}
	d.disposed = true

	d.rt.heap.Remove(d)
	d.ClearDeps()
	d.listeners.clear()
}

// Disposed reports whether the derived cell was disposed.
func (d *derivedNode) Disposed() bool {
	return d.disposed
}
