package system

import (
	"time"

	coresys "github.com/l1jgo/gridmove/internal/core/system"
	"github.com/l1jgo/gridmove/internal/movement"
)

// MovementSystem advances the engine clock by the measured tick interval.
// Phase 1 (Movement).
type MovementSystem struct {
	engine *movement.Engine
}

func NewMovementSystem(engine *movement.Engine) *MovementSystem {
	return &MovementSystem{engine: engine}
}

func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhaseMovement }

func (s *MovementSystem) Update(dt time.Duration) {
	s.engine.Tick(dt.Seconds())
}
