package world

import "github.com/l1jgo/gridmove/internal/core/ecs"

// AOIGrid implements a cell-based Area of Interest system.
// Cell size is chosen so that a 3x3 neighbourhood of cells fully covers
// the default visibility range (Chebyshev distance 20).
// Not locked; State serializes access.

const cellSize = 20

type cellKey struct {
	cx int32
	cy int32
}

func toCellCoord(v int32) int32 {
	if v < 0 {
		return (v - cellSize + 1) / cellSize
	}
	return v / cellSize
}

// AOIGrid tracks which entities are in which cells.
type AOIGrid struct {
	cells map[cellKey]map[ecs.EntityID]struct{}
}

func NewAOIGrid() *AOIGrid {
	return &AOIGrid{
		cells: make(map[cellKey]map[ecs.EntityID]struct{}),
	}
}

func (g *AOIGrid) key(x, y int32) cellKey {
	return cellKey{cx: toCellCoord(x), cy: toCellCoord(y)}
}

// Add places an entity into the grid.
func (g *AOIGrid) Add(id ecs.EntityID, x, y int32) {
	k := g.key(x, y)
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[ecs.EntityID]struct{})
		g.cells[k] = cell
	}
	cell[id] = struct{}{}
}

// Remove takes an entity out of the grid.
func (g *AOIGrid) Remove(id ecs.EntityID, x, y int32) {
	k := g.key(x, y)
	cell := g.cells[k]
	if cell != nil {
		delete(cell, id)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
}

// Move updates an entity's cell when its position changes.
func (g *AOIGrid) Move(id ecs.EntityID, oldX, oldY, newX, newY int32) {
	if g.key(oldX, oldY) == g.key(newX, newY) {
		return
	}
	g.Remove(id, oldX, oldY)
	g.Add(id, newX, newY)
}

// GetNearbyInto appends every entity in the square of cells that covers
// radius tiles around (x, y) to buf[:0]. Caller does fine-grained distance
// filtering.
func (g *AOIGrid) GetNearbyInto(x, y, radius int32, buf []ecs.EntityID) []ecs.EntityID {
	buf = buf[:0]
	reach := (radius + cellSize - 1) / cellSize
	if reach < 1 {
		reach = 1
	}
	cx := toCellCoord(x)
	cy := toCellCoord(y)
	for dx := -reach; dx <= reach; dx++ {
		for dy := -reach; dy <= reach; dy++ {
			for id := range g.cells[cellKey{cx: cx + dx, cy: cy + dy}] {
				buf = append(buf, id)
			}
		}
	}
	return buf
}
