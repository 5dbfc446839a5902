package reactive

func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}

	return v.(T)
}

// Readable is a typed Source.
type Readable[T any] interface {
	Source
	Get() T
}

// Read returns the value of s and records it as a dependency of the
// recomputation r belongs to.
func Read[T any](r *Reader, s Readable[T]) T {
	return as[T](r.Read(s))
}

type Cell[T any] struct {
	cell *cellNode
}

// NewCell creates a writable cell holding initial.
func NewCell[T any](r *Runtime, initial T) *Cell[T] {
	return &Cell[T]{r.newCell(initial)}
}

func (c *Cell[T]) source() *Node { return &c.cell.Node }

// Get the current value without tracking.
func (c *Cell[T]) Get() T {
	return as[T](c.cell.value)
}

// Set a new value, recomputing dependents and firing listeners before
// returning.
func (c *Cell[T]) Set(v T) {
	c.cell.Set(v)
}

// AddListener calls fn with each new value.
func (c *Cell[T]) AddListener(fn func(T)) (remove func()) {
	return c.cell.AddListener(func(v any) { fn(as[T](v)) })
}

type Derived[T any] struct {
	derived *derivedNode
}

// NewDerived creates a cell computed from other cells. compute must be pure:
// it reads its inputs through the Reader and must not Set any cell.
func NewDerived[T any](r *Runtime, compute func(*Reader) T) *Derived[T] {
	return &Derived[T]{
		r.newDerived(func(rd *Reader) any { return compute(rd) }),
	}
}

func (d *Derived[T]) source() *Node { return &d.derived.Node }

// Get the cached value without tracking.
func (d *Derived[T]) Get() T {
	return as[T](d.derived.value)
}

// AddListener calls fn with each new computed value.
func (d *Derived[T]) AddListener(fn func(T)) (remove func()) {
	return d.derived.AddListener(func(v any) { fn(as[T](v)) })
}

// Dispose detaches the derived cell from its dependencies.
func (d *Derived[T]) Dispose() {
	d.derived.Dispose()
}

// Disposed reports whether Dispose was called, directly or by the owner.
func (d *Derived[T]) Disposed() bool {
	return d.derived.Disposed()
}
