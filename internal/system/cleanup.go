package system

import (
	"time"

	"github.com/l1jgo/gridmove/internal/core/ecs"
	"github.com/l1jgo/gridmove/internal/core/event"
	coresys "github.com/l1jgo/gridmove/internal/core/system"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end
// and announces each removal on the bus. Phase 5 (Cleanup).
type CleanupSystem struct {
	world *ecs.World
	bus   *event.Bus
}

func NewCleanupSystem(world *ecs.World, bus *event.Bus) *CleanupSystem {
	return &CleanupSystem{world: world, bus: bus}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	for _, id := range s.world.FlushDestroyQueue() {
		event.Emit(s.bus, event.EntityRemoved{Entity: id})
	}
}
