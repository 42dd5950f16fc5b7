package system

import (
	"fmt"
	"time"

	"github.com/l1jgo/gridmove/internal/core/event"
	coresys "github.com/l1jgo/gridmove/internal/core/system"
	"github.com/l1jgo/gridmove/internal/handler"
	"github.com/l1jgo/gridmove/internal/patrol"
	"go.uber.org/zap"
)

// EventSystem delivers everything emitted during the previous tick.
// Phase 2 (Events).
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhaseEvents }

func (s *EventSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

// Subscribe wires the bus consumers. ctrl may be nil when no patrols are
// configured.
func Subscribe(bus *event.Bus, ctrl *patrol.Controller, bc *handler.Broadcaster, log *zap.Logger) {
	if ctrl != nil {
		event.Subscribe(bus, func(ev event.PathComplete) {
			ctrl.OnPathComplete(ev.Entity, ev.Cell)
		})
	}
	event.Subscribe(bus, func(ev event.PositionCorrected) {
		log.Debug(fmt.Sprintf("位置已校正  entity=%s", ev.Entity),
			zap.Stringer("cell", ev.Cell),
			zap.String("reason", ev.Reason))
	})
	if bc != nil {
		event.Subscribe(bus, func(ev event.EntityRemoved) {
			bc.AnnounceRemoval(ev.Entity)
		})
	}
}
