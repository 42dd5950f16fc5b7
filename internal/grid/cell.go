package grid

import "fmt"

// Cell is an integer tile coordinate. Comparable, usable as a map key.
type Cell struct {
	X int32
	Y int32
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Add returns c offset by (dx, dy).
func (c Cell) Add(dx, dy int32) Cell {
	return Cell{X: c.X + dx, Y: c.Y + dy}
}

// Direction deltas for the four cardinal headings: N, E, S, W.
// Same axis convention as the map data (north = -Y).
var dirDX = [4]int32{0, 1, 0, -1}
var dirDY = [4]int32{-1, 0, 1, 0}

// Neighbors4 returns the 4-connected neighbours of c in fixed N, E, S, W order.
func Neighbors4(c Cell) [4]Cell {
	var out [4]Cell
	for i := range out {
		out[i] = Cell{X: c.X + dirDX[i], Y: c.Y + dirDY[i]}
	}
	return out
}

// Manhattan returns |dx| + |dy|.
func Manhattan(a, b Cell) int32 {
	return abs32(a.X-b.X) + abs32(a.Y-b.Y)
}

// Chebyshev returns max(|dx|, |dy|).
func Chebyshev(a, b Cell) int32 {
	dx := abs32(a.X - b.X)
	dy := abs32(a.Y - b.Y)
	if dy > dx {
		return dy
	}
	return dx
}

// Adjacent reports whether a and b are exactly one cardinal step apart.
func Adjacent(a, b Cell) bool {
	return Manhattan(a, b) == 1
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
