package movement

import (
	"errors"

	"github.com/l1jgo/gridmove/internal/core/ecs"
	"github.com/l1jgo/gridmove/internal/grid"
)

// None of these are fatal. Network races routinely deliver messages for
// entities that were just removed, so callers log at debug and move on.
var (
	ErrUnknownEntity     = errors.New("unknown entity")
	ErrEmptyPath         = errors.New("empty path")
	ErrDisjointPath      = errors.New("path is not 4-connected to the entity")
	ErrInvalidSpeed      = errors.New("speed must be positive and finite")
	ErrPositionMismatch  = errors.New("position changed since validation")
	ErrNoCommandInFlight = errors.New("no move command awaiting acknowledgment")
	ErrSelfPaced         = errors.New("entity is self-paced")
)

// Kind selects the scheduling discipline.
type Kind uint8

const (
	// SelfPaced entities (NPCs) complete each step after 1/speed seconds of tick time.
	SelfPaced Kind = iota
	// ExternallyDriven entities (players) complete a step only when the
	// client acknowledges it.
	ExternallyDriven
)

func (k Kind) String() string {
	if k == ExternallyDriven {
		return "external"
	}
	return "self"
}

type Status uint8

const (
	Idle Status = iota
	Moving
)

func (s Status) String() string {
	if s == Moving {
		return "moving"
	}
	return "idle"
}

// State is a copy of one entity's movement state. Mutating it has no effect
// on the engine.
type State struct {
	ID               ecs.EntityID
	Kind             Kind
	Current          grid.Cell
	Pending          *grid.Cell // nil when idle
	Queue            []grid.Cell
	Status           Status
	Speed            float64 // tiles per second
	AwaitingAck      bool
	SinceLastCommand float64 // seconds
	LastCommandAt    float64 // server uptime seconds
}

// Snapshot is the per-entity row of GetAllEntitiesSnapshot.
type Snapshot struct {
	ID     ecs.EntityID
	Cell   grid.Cell
	Status Status
}

// Command describes one cell-to-cell transition. Duration and Timestamp are
// enough for a receiver to interpolate without further ticks.
type Command struct {
	Entity    ecs.EntityID
	From      grid.Cell
	To        grid.Cell
	Duration  float64 // seconds
	Timestamp float64 // server uptime seconds
}

// Sink receives engine output. Calls happen while the entity's lock is held,
// so implementations must not call back into the engine for the same entity
// synchronously; queue the work instead (the event bus does exactly that).
type Sink interface {
	OnSendMoveCommand(cmd Command)
	OnEntityPathComplete(id ecs.EntityID, final grid.Cell)
}

// SinkFuncs adapts plain functions to Sink. Nil fields are skipped.
type SinkFuncs struct {
	Command      func(cmd Command)
	PathComplete func(id ecs.EntityID, final grid.Cell)
}

func (s SinkFuncs) OnSendMoveCommand(cmd Command) {
	if s.Command != nil {
		s.Command(cmd)
	}
}

func (s SinkFuncs) OnEntityPathComplete(id ecs.EntityID, final grid.Cell) {
	if s.PathComplete != nil {
		s.PathComplete(id, final)
	}
}
