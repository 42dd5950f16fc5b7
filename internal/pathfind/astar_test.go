package pathfind

import (
	"testing"

	"github.com/l1jgo/gridmove/internal/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRect(w, h int32) *grid.Rect {
	return &grid.Rect{MinX: 0, MinY: 0, MaxX: w - 1, MaxY: h - 1}
}

func requireValidPath(t *testing.T, path []grid.Cell, start, target grid.Cell) {
	t.Helper()
	require.NotEmpty(t, path)
	assert.Equal(t, start, path[0])
	assert.Equal(t, target, path[len(path)-1])
	for i := 1; i < len(path); i++ {
		assert.True(t, grid.Adjacent(path[i-1], path[i]), "step %d: %v -> %v", i, path[i-1], path[i])
	}
}

func TestFindPathOpenRegionIsOptimal(t *testing.T) {
	f := NewFinder(openRect(12, 9))
	cases := []struct {
		start, target grid.Cell
	}{
		{grid.Cell{X: 0, Y: 0}, grid.Cell{X: 11, Y: 8}},
		{grid.Cell{X: 11, Y: 8}, grid.Cell{X: 0, Y: 0}},
		{grid.Cell{X: 3, Y: 4}, grid.Cell{X: 3, Y: 0}},
		{grid.Cell{X: 5, Y: 5}, grid.Cell{X: 6, Y: 5}},
		{grid.Cell{X: 10, Y: 1}, grid.Cell{X: 2, Y: 7}},
	}
	for _, tc := range cases {
		path := f.FindPath(tc.start, tc.target)
		requireValidPath(t, path, tc.start, tc.target)
		assert.Len(t, path, int(1+grid.Manhattan(tc.start, tc.target)))
	}
}

func TestFindPathSameCell(t *testing.T) {
	f := NewFinder(openRect(3, 3))
	c := grid.Cell{X: 1, Y: 1}
	assert.Equal(t, []grid.Cell{c}, f.FindPath(c, c))
}

func TestFindPathEnclosedTargetIsEmpty(t *testing.T) {
	r := openRect(7, 7)
	target := grid.Cell{X: 5, Y: 5}
	for _, nb := range grid.Neighbors4(target) {
		r.Block(nb)
	}
	f := NewFinder(r)
	assert.Empty(t, f.FindPath(grid.Cell{X: 0, Y: 0}, target))
}

func TestFindPathBlockedTargetIsEmpty(t *testing.T) {
	r := openRect(4, 4)
	r.Block(grid.Cell{X: 3, Y: 3})
	f := NewFinder(r)
	assert.Empty(t, f.FindPath(grid.Cell{X: 0, Y: 0}, grid.Cell{X: 3, Y: 3}))
}

func TestFindPathDetoursAroundWall(t *testing.T) {
	// Vertical wall at x=2 from y=0..3, gap at y=4.
	r := openRect(5, 5)
	for y := int32(0); y < 4; y++ {
		r.Block(grid.Cell{X: 2, Y: y})
	}
	f := NewFinder(r)
	start := grid.Cell{X: 0, Y: 0}
	target := grid.Cell{X: 4, Y: 0}

	path := f.FindPath(start, target)
	requireValidPath(t, path, start, target)
	// Down 4, across 4, up 4.
	assert.Len(t, path, 13)
	for _, c := range path {
		assert.True(t, r.IsWalkable(c), "path crosses blocked cell %v", c)
	}
	assert.Contains(t, path, grid.Cell{X: 2, Y: 4})
}

func TestFindPathIsDeterministic(t *testing.T) {
	r := openRect(20, 20)
	r.Block(grid.Cell{X: 5, Y: 5}, grid.Cell{X: 5, Y: 6}, grid.Cell{X: 6, Y: 5}, grid.Cell{X: 12, Y: 3})
	f := NewFinder(r)
	start := grid.Cell{X: 1, Y: 2}
	target := grid.Cell{X: 17, Y: 14}

	first := f.FindPath(start, target)
	requireValidPath(t, first, start, target)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, f.FindPath(start, target))
	}
}

func TestFindPathUnreachableRegion(t *testing.T) {
	// Full wall at x=3 splits the map.
	r := openRect(7, 4)
	for y := int32(0); y < 4; y++ {
		r.Block(grid.Cell{X: 3, Y: y})
	}
	f := NewFinder(r)
	assert.Empty(t, f.FindPath(grid.Cell{X: 0, Y: 0}, grid.Cell{X: 6, Y: 3}))
}
