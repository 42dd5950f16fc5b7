package pathfind

import (
	"container/heap"

	"github.com/l1jgo/gridmove/internal/grid"
)

// Finder computes shortest 4-directional paths over a walkability oracle.
// It keeps no state between calls and is safe for concurrent use as long
// as the oracle is.
type Finder struct {
	oracle grid.Oracle
}

func NewFinder(oracle grid.Oracle) *Finder {
	return &Finder{oracle: oracle}
}

// node is one A* search record. index is its slot in the open heap,
// -1 once it has been popped (closed).
type node struct {
	cell   grid.Cell
	parent *node
	g      int32
	h      int32
	seq    uint32 // insertion order, final tie-break
	index  int
	closed bool
}

func (n *node) f() int32 { return n.g + n.h }

// openSet orders by f, then h (closer to goal first), then insertion order.
type openSet []*node

func (o openSet) Len() int { return len(o) }

func (o openSet) Less(i, j int) bool {
	a, b := o[i], o[j]
	if a.f() != b.f() {
		return a.f() < b.f()
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

func (o openSet) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}

func (o *openSet) Push(x any) {
	n := x.(*node)
	n.index = len(*o)
	*o = append(*o, n)
}

func (o *openSet) Pop() any {
	old := *o
	n := old[len(old)-1]
	old[len(old)-1] = nil
	n.index = -1
	*o = old[:len(old)-1]
	return n
}

// FindPath returns the path from start to target, inclusive of both ends.
// A path of length 1 ({start}) means start == target. An empty slice means
// the target cannot be reached; it is never an error.
func (f *Finder) FindPath(start, target grid.Cell) []grid.Cell {
	if start == target {
		return []grid.Cell{start}
	}
	if !f.oracle.IsWalkable(target) {
		return nil
	}

	var seq uint32
	nodes := make(map[grid.Cell]*node, 64)
	open := make(openSet, 0, 64)

	root := &node{cell: start, h: grid.Manhattan(start, target), seq: seq}
	nodes[start] = root
	heap.Push(&open, root)

	for open.Len() > 0 {
		cur := heap.Pop(&open).(*node)
		cur.closed = true
		if cur.cell == target {
			return reconstruct(cur)
		}

		for _, nb := range grid.Neighbors4(cur.cell) {
			if !f.oracle.IsWalkable(nb) {
				continue
			}
			g := cur.g + 1
			existing, seen := nodes[nb]
			if seen {
				if existing.closed || g >= existing.g {
					continue
				}
				// Cheaper route to a node still in the open set: relax in place.
				existing.g = g
				existing.parent = cur
				heap.Fix(&open, existing.index)
				continue
			}
			seq++
			n := &node{
				cell:   nb,
				parent: cur,
				g:      g,
				h:      grid.Manhattan(nb, target),
				seq:    seq,
			}
			nodes[nb] = n
			heap.Push(&open, n)
		}
	}
	return nil
}

func reconstruct(end *node) []grid.Cell {
	path := make([]grid.Cell, 0, end.g+1)
	for n := end; n != nil; n = n.parent {
		path = append(path, n.cell)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
