package grid

// Oracle answers whether a cell can be entered.
type Oracle interface {
	IsWalkable(c Cell) bool
}

// OracleFunc adapts a plain function to Oracle.
type OracleFunc func(c Cell) bool

func (f OracleFunc) IsWalkable(c Cell) bool { return f(c) }

// Rect is an open rectangular region with optional blocked cells.
// Used by tests and tools; production maps come from data.TileMap.
type Rect struct {
	MinX, MinY int32
	MaxX, MaxY int32 // inclusive
	Blocked    map[Cell]bool
}

func (r *Rect) IsWalkable(c Cell) bool {
	if c.X < r.MinX || c.X > r.MaxX || c.Y < r.MinY || c.Y > r.MaxY {
		return false
	}
	return !r.Blocked[c]
}

// Block marks cells as not walkable.
func (r *Rect) Block(cells ...Cell) {
	if r.Blocked == nil {
		r.Blocked = make(map[Cell]bool, len(cells))
	}
	for _, c := range cells {
		r.Blocked[c] = true
	}
}
