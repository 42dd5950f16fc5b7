package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManhattanAndChebyshev(t *testing.T) {
	a := Cell{X: 1, Y: 2}
	b := Cell{X: -2, Y: 6}
	assert.Equal(t, int32(7), Manhattan(a, b))
	assert.Equal(t, int32(4), Chebyshev(a, b))
	assert.Equal(t, int32(0), Manhattan(a, a))
}

func TestNeighbors4Order(t *testing.T) {
	n := Neighbors4(Cell{X: 5, Y: 5})
	assert.Equal(t, [4]Cell{{5, 4}, {6, 5}, {5, 6}, {4, 5}}, n)
	for _, c := range n {
		assert.True(t, Adjacent(Cell{X: 5, Y: 5}, c))
	}
	assert.False(t, Adjacent(Cell{X: 0, Y: 0}, Cell{X: 1, Y: 1}))
}

func TestRectOracle(t *testing.T) {
	r := &Rect{MinX: 0, MinY: 0, MaxX: 3, MaxY: 3}
	r.Block(Cell{X: 1, Y: 1})

	assert.True(t, r.IsWalkable(Cell{X: 0, Y: 0}))
	assert.True(t, r.IsWalkable(Cell{X: 3, Y: 3}))
	assert.False(t, r.IsWalkable(Cell{X: 1, Y: 1}))
	assert.False(t, r.IsWalkable(Cell{X: 4, Y: 0}))
	assert.False(t, r.IsWalkable(Cell{X: 0, Y: -1}))

	var o Oracle = OracleFunc(func(c Cell) bool { return c.X == 0 })
	assert.True(t, o.IsWalkable(Cell{X: 0, Y: 9}))
	assert.False(t, o.IsWalkable(Cell{X: 1, Y: 9}))
}
