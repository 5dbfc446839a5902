package reactive

// PriorityHeap buckets dirty derived nodes by height so that a node is only
// recomputed after every node below it in the graph.
type PriorityHeap struct {
	min int
	max int

	nodes []*heapNode // [height]head

	lookup map[*derivedNode]*heapNode // for O(1) removal
}

type heapNode struct {
	node *derivedNode

	next *heapNode
	prev *heapNode
}

func NewHeap() *PriorityHeap {
	return &PriorityHeap{
		nodes:  make([]*heapNode, 16),
		lookup: make(map[*derivedNode]*heapNode),
	}
}

func (h *PriorityHeap) Insert(node *derivedNode) {
	if node.inHeap || node.disposed {
		return
	}
	node.inHeap = true

	entry := &heapNode{node: node}
	h.lookup[node] = entry

	height := node.height
	for height >= len(h.nodes) {
		h.nodes = append(h.nodes, make([]*heapNode, len(h.nodes))...)
	}

	if h.nodes[height] == nil {
		h.nodes[height] = entry
		entry.prev = entry // loop to self
		entry.next = nil
	} else {
		head := h.nodes[height]
		tail := head.prev

		tail.next = entry
		entry.prev = tail
		entry.next = nil
		head.prev = entry
	}

	if height > h.max {
		h.max = height
	}
}

// Schedule inserts node at a height of at least height, and never below the
// bucket being drained. A node already waiting lower is moved up.
func (h *PriorityHeap) Schedule(node *derivedNode, height int) {
	height = max(height, h.min)
	if node.height < height {
		h.Remove(node)
		node.height = height
	}
	h.Insert(node)
}

func (h *PriorityHeap) Remove(node *derivedNode) {
	if !node.inHeap {
		return
	}
	node.inHeap = false

	entry, ok := h.lookup[node]
	if !ok {
		return
	}
	delete(h.lookup, node)

	height := node.height

	// single node
	if entry.prev == entry {
		h.nodes[height] = nil
		entry.next = nil
		return
	}

	// multiple nodes
	head := h.nodes[height]
	if entry == head {
		h.nodes[height] = entry.next
	} else {
		entry.prev.next = entry.next
	}

	next := entry.next
	if next == nil {
		next = h.nodes[height]
	}
	next.prev = entry.prev

	entry.prev = entry
	entry.next = nil
}

// Len reports how many nodes are waiting.
func (h *PriorityHeap) Len() int {
	return len(h.lookup)
}

// Drain processes each entry in topological order with the `process` function leaving the heap empty.
func (h *PriorityHeap) Drain(process func(*derivedNode)) {
	for h.min = 0; h.min <= h.max; h.min++ {
		entry := h.nodes[h.min]

		for entry != nil {
			h.Remove(entry.node)
			process(entry.node)
			entry = h.nodes[h.min]
		}
	}

	h.min = 0
	if len(h.lookup) == 0 {
		h.max = 0
	}
}
