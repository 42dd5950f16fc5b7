package handler

import (
	"github.com/l1jgo/gridmove/internal/core/ecs"
	"github.com/l1jgo/gridmove/internal/core/event"
	"github.com/l1jgo/gridmove/internal/grid"
	"github.com/l1jgo/gridmove/internal/movement"
	"github.com/l1jgo/gridmove/internal/net/packet"
	"go.uber.org/zap"
)

// Broadcaster is the engine's movement.Sink: it fans each move command out
// to the sessions that can see either end of the step and forwards
// path-complete notifications to the event bus. Runs under the engine's
// per-entity lock, so it only queues frames and never calls back into the
// engine.
type Broadcaster struct {
	deps *Deps
}

func NewBroadcaster(deps *Deps) *Broadcaster {
	return &Broadcaster{deps: deps}
}

func (b *Broadcaster) OnSendMoveCommand(cmd movement.Command) {
	ws := b.deps.World
	viewers := mergeSorted(ws.ViewersOf(cmd.From), ws.ViewersOf(cmd.To))
	ws.UpdateCell(cmd.Entity, cmd.To)
	if len(viewers) == 0 {
		return
	}

	data, err := packet.Encode(packet.S_OPCODE_MOVE, packet.Move{
		Entity:    uint64(cmd.Entity),
		From:      packet.Cell{X: cmd.From.X, Y: cmd.From.Y},
		To:        packet.Cell{X: cmd.To.X, Y: cmd.To.Y},
		Duration:  cmd.Duration,
		Timestamp: cmd.Timestamp,
	})
	if err != nil {
		b.deps.Log.Error("封包編碼失敗", zap.String("op", packet.S_OPCODE_MOVE), zap.Error(err))
		return
	}
	for _, sid := range viewers {
		if b.deps.Outbox.SendTo(sid, data) {
			b.deps.Stats.Broadcasts.Add(1)
		}
	}
}

func (b *Broadcaster) OnEntityPathComplete(id ecs.EntityID, final grid.Cell) {
	event.Emit(b.deps.Bus, event.PathComplete{Entity: id, Cell: final})
}

// Announce shows a newly spawned entity to everyone in view except its own
// session.
func (b *Broadcaster) Announce(id ecs.EntityID, at grid.Cell, ownSession uint64) {
	c := packet.Cell{X: at.X, Y: at.Y}
	data, err := packet.Encode(packet.S_OPCODE_MOVE, packet.Move{
		Entity:    uint64(id),
		From:      c,
		To:        c,
		Timestamp: b.deps.Engine.GetServerUptime(),
	})
	if err != nil {
		return
	}
	for _, sid := range b.deps.World.ViewersOf(at) {
		if sid != ownSession {
			b.deps.Outbox.SendTo(sid, data)
		}
	}
}

// AnnounceRemoval tells every connected session that id is gone. Called
// from the EntityRemoved handler after the directory no longer knows where
// the entity was.
func (b *Broadcaster) AnnounceRemoval(id ecs.EntityID) {
	data, err := packet.Encode(packet.S_OPCODE_REMOVE, packet.Remove{Entity: uint64(id)})
	if err != nil {
		return
	}
	for _, sid := range b.deps.Outbox.SessionIDs() {
		b.deps.Outbox.SendTo(sid, data)
	}
}

// mergeSorted unions two ascending id lists.
func mergeSorted(a, b []uint64) []uint64 {
	out := make([]uint64, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
