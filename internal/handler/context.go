package handler

import (
	"sync/atomic"

	"github.com/l1jgo/gridmove/internal/config"
	"github.com/l1jgo/gridmove/internal/core/ecs"
	"github.com/l1jgo/gridmove/internal/core/event"
	"github.com/l1jgo/gridmove/internal/movement"
	"github.com/l1jgo/gridmove/internal/net"
	"github.com/l1jgo/gridmove/internal/net/packet"
	"github.com/l1jgo/gridmove/internal/pathfind"
	"github.com/l1jgo/gridmove/internal/persist"
	"github.com/l1jgo/gridmove/internal/scripting"
	"github.com/l1jgo/gridmove/internal/world"
	"go.uber.org/zap"
)

// Outbox delivers encoded frames to sessions by id. *net.Server satisfies it.
type Outbox interface {
	SendTo(sessionID uint64, data []byte) bool
	SessionIDs() []uint64
}

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config     *config.Config
	Log        *zap.Logger
	ECS        *ecs.World
	World      *world.State
	Engine     *movement.Engine
	Finder     *pathfind.Finder
	Validator  *movement.Validator
	Bus        *event.Bus
	Outbox     Outbox
	Broadcast  *Broadcaster
	Scripting  *scripting.Engine        // nil: every rejection is corrected
	Violations *persist.ViolationBuffer // nil: audit log disabled
	Stats      *Stats
}

// Stats counts gateway traffic for /metrics.
type Stats struct {
	Messages    atomic.Int64
	Clicks      atomic.Int64
	Acks        atomic.Int64
	Positions   atomic.Int64
	NoPath      atomic.Int64
	Rejections  atomic.Int64
	Corrections atomic.Int64
	Kicks       atomic.Int64
	Broadcasts  atomic.Int64
}

// Snapshot returns a read-only copy for HTTP output.
func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"messages":    s.Messages.Load(),
		"clicks":      s.Clicks.Load(),
		"acks":        s.Acks.Load(),
		"positions":   s.Positions.Load(),
		"no_path":     s.NoPath.Load(),
		"rejections":  s.Rejections.Load(),
		"corrections": s.Corrections.Load(),
		"kicks":       s.Kicks.Load(),
		"broadcasts":  s.Broadcasts.Load(),
	}
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	inWorldStates := []packet.SessionState{packet.StateInWorld}

	reg.Register(packet.C_OPCODE_CLICK, inWorldStates,
		func(sess any, r *packet.Reader) {
			HandleClick(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_MOVE_DONE, inWorldStates,
		func(sess any, r *packet.Reader) {
			HandleMoveDone(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_POSITION, inWorldStates,
		func(sess any, r *packet.Reader) {
			HandlePosition(sess.(*net.Session), r, deps)
		},
	)
}

// Dispatcher returns the net.MessageHandler that feeds every inbound frame
// through the registry. Errors are logged and the connection stays open.
func Dispatcher(reg *packet.Registry, deps *Deps) net.MessageHandler {
	return func(sess *net.Session, data []byte) {
		deps.Stats.Messages.Add(1)
		if err := reg.Dispatch(sess, sess.State(), data); err != nil {
			deps.Log.Debug("封包處理失敗", zap.Uint64("session", sess.ID), zap.Error(err))
		}
	}
}
