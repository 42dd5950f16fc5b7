package event

import (
	"github.com/l1jgo/gridmove/internal/core/ecs"
	"github.com/l1jgo/gridmove/internal/grid"
)

// PathComplete fires when an entity finishes its last queued step.
type PathComplete struct {
	Entity ecs.EntityID
	Cell   grid.Cell
}

// PositionCorrected fires when a client-reported position was rejected and
// the entity was told to snap back to Cell.
type PositionCorrected struct {
	Entity ecs.EntityID
	Cell   grid.Cell
	Reason string
}

// EntityRemoved fires after an entity was flushed from every owner.
type EntityRemoved struct {
	Entity ecs.EntityID
}
