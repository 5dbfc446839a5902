package reactive

import "iter"

// DependencyLink is one edge of the dependency graph. It sits in two doubly
// linked lists at once: the dependencies of sub and the subscribers of dep.
type DependencyLink struct {
	dep *Node
	sub *derivedNode

	prevDep *DependencyLink
	nextDep *DependencyLink

	prevSub *DependencyLink
	nextSub *DependencyLink
}

// link records that sub read dep during its current recomputation.
func link(sub *derivedNode, dep *Node) {
	// dont link if already present as the most recent dependency
	if sub.depsHead != nil {
		tail := sub.depsHead.prevDep
		if tail.dep == dep {
			return
		}
	}
	for d := range sub.Deps() {
		if d == dep {
			return
		}
	}

	l := &DependencyLink{dep: dep, sub: sub}

	sub.addDepLink(l)
	dep.addSubLink(l)

	if dep.height >= sub.height {
		sub.height = dep.height + 1
	}
}

func (n *Node) addSubLink(l *DependencyLink) {
	if n.subsHead == nil {
		n.subsHead = l
		l.prevSub = l // loop to self
		l.nextSub = nil
	} else {
		tail := n.subsHead.prevSub
		tail.nextSub = l
		l.prevSub = tail
		l.nextSub = nil
		n.subsHead.prevSub = l
	}
}

func (n *Node) removeSubLink(l *DependencyLink) {
	if n.subsHead == nil {
		return
	}

	// single link
	if l.prevSub == l {
		n.subsHead = nil
		l.nextSub = nil
		return
	}

	head := n.subsHead
	if l == head {
		n.subsHead = l.nextSub
	} else {
		l.prevSub.nextSub = l.nextSub
	}

	next := l.nextSub
	if next == nil {
		next = n.subsHead
	}
	next.prevSub = l.prevSub

	l.prevSub = l
	l.nextSub = nil
}

// Subs returns an iterator over the derived nodes currently reading n.
func (n *Node) Subs() iter.Seq[*derivedNode] {
	return func(yield func(*derivedNode) bool) {
		for l := n.subsHead; l != nil; {
			next := l.nextSub
			if !yield(l.sub) {
				return
			}
			l = next
		}
	}
}

func (d *derivedNode) addDepLink(l *DependencyLink) {
	if d.depsHead == nil {
		d.depsHead = l
		l.prevDep = l // loop to self
		l.nextDep = nil
	} else {
		tail := d.depsHead.prevDep
		tail.nextDep = l
		l.prevDep = tail
		l.nextDep = nil
		d.depsHead.prevDep = l
	}
}

// Deps returns an iterator over all dependencies
func (d *derivedNode) Deps() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for l := d.depsHead; l != nil; l = l.nextDep {
			if !yield(l.dep) {
				return
			}
		}
	}
}

// ClearDeps removes all dependencies
func (d *derivedNode) ClearDeps() {
	for l := d.depsHead; l != nil; {
		next := l.nextDep
		l.dep.removeSubLink(l)
		l = next
	}

	d.depsHead = nil
}
