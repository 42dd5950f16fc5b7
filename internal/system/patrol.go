package system

import (
	"time"

	coresys "github.com/l1jgo/gridmove/internal/core/system"
	"github.com/l1jgo/gridmove/internal/patrol"
)

// PatrolSystem re-drives idle patrollers every interval. Path completion
// already drives the next leg through the bus; this pass picks up routes
// whose last request failed or whose target was unreachable.
// Phase 3 (AI).
type PatrolSystem struct {
	ctrl     *patrol.Controller
	interval time.Duration
	acc      time.Duration
}

func NewPatrolSystem(ctrl *patrol.Controller, interval time.Duration) *PatrolSystem {
	return &PatrolSystem{ctrl: ctrl, interval: interval}
}

func (s *PatrolSystem) Phase() coresys.Phase { return coresys.PhaseAI }

func (s *PatrolSystem) Update(dt time.Duration) {
	s.acc += dt
	if s.acc < s.interval {
		return
	}
	s.acc -= s.interval
	s.ctrl.Update()
}
