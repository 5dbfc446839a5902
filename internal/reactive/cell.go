package reactive

// Source is anything a Reader can read: cells and derived cells.
type Source interface {
	source() *Node
}

type cellNode struct {
	Node
}

func (c *cellNode) source() *Node { return &c.Node }

// newCell creates an untyped writable cell.
func (r *Runtime) newCell(initial any) *cellNode {
	return &cellNode{Node: Node{rt: r, value: initial}}
}

// Set stores v and synchronously propagates the change. Setting a value
// identical to the current one does nothing.
func (c *cellNode) Set(v any) {
	if identical(c.value, v) {
		return
	}

	c.value = v
	c.version++
	c.rt.propagate(&c.Node)
}
