package reactive

import (
	"errors"
	"fmt"
)

// DefaultMaxDepth bounds how deeply propagations may nest before the
// runtime assumes a derived cell is writing to its own dependencies.
const DefaultMaxDepth = 64

// ErrCycle is the panic value raised when propagation nests deeper than the
// runtime's max depth. It always indicates a programming error: a
// recomputation (or a listener reacting to it) writing back into one of its
// own transitive dependencies.
var ErrCycle = errors.New("reactive: propagation cycle")

// Runtime is one reactive graph. It is not safe for concurrent use: every
// Set, listener and recomputation must happen on the goroutine that owns
// the session.
type Runtime struct {
	heap    *PriorityHeap
	tracker *Tracker
	root    *Owner

	// nesting depth of propagate
	depth    int
	maxDepth int
}

type Option func(*Runtime)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(r *Runtime) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{
		heap:     NewHeap(),
		maxDepth: DefaultMaxDepth,
	}
	r.root = &Owner{rt: r}
	r.tracker = NewTracker(r.root)

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Root returns the owner every node belongs to when no other owner is
// current.
func (r *Runtime) Root() *Owner {
	return r.root
}

// CurrentOwner returns the owner new nodes are attached to.
func (r *Runtime) CurrentOwner() *Owner {
	return r.tracker.CurrentOwner()
}

// OnCleanup registers fn on the current owner.
func (r *Runtime) OnCleanup(fn func()) {
	r.tracker.CurrentOwner().OnCleanup(fn)
}

// Dispose disposes the root owner and with it the whole graph.
func (r *Runtime) Dispose() {
	r.root.Dispose()
}

type change struct {
	node    *Node
	version uint64
}

// propagate recomputes every derived node transitively depending on the
// changed node n, lowest height first, then fires the listeners of every
// node whose value changed, in the order the changes happened.
func (r *Runtime) propagate(n *Node) {
	r.depth++
	defer func() { r.depth-- }()

	if r.depth > r.maxDepth {
		panic(fmt.Errorf("%w: propagation nested %d levels deep", ErrCycle, r.depth))
	}

	changed := []change{{node: n, version: n.version}}

	r.schedule(n)
	r.heap.Drain(func(d *derivedNode) {
		if d.recompute() {
			d.version++
			changed = append(changed, change{node: &d.Node, version: d.version})
			r.schedule(&d.Node)
		}
	})

	for _, c := range changed {
		c.node.notify(c.version)
	}
}

// schedule queues the subscribers of n above n, raising heights that went
// stale when n gained a deeper dependency.
func (r *Runtime) schedule(n *Node) {
	for sub := range n.Subs() {
		r.heap.Schedule(sub, n.height+1)
	}
}
