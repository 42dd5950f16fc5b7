package handler

import (
	"fmt"

	"github.com/l1jgo/gridmove/internal/grid"
	"github.com/l1jgo/gridmove/internal/movement"
	"github.com/l1jgo/gridmove/internal/net"
	"github.com/l1jgo/gridmove/internal/net/packet"
	"github.com/l1jgo/gridmove/internal/world"
	"go.uber.org/zap"
)

// EnterWorld creates the player entity for a fresh session, registers it
// with the engine and the directory, and sends welcome plus the positions
// of everything already in view. Called from InputSystem on the tick
// goroutine.
func EnterWorld(sess *net.Session, deps *Deps) error {
	if sess.IsClosed() {
		return nil
	}
	cfg := deps.Config
	spawn := grid.Cell{X: cfg.Map.SpawnX, Y: cfg.Map.SpawnY}

	id := deps.ECS.CreateEntity()
	if err := deps.Engine.RegisterEntity(id, spawn, cfg.Movement.PlayerSpeed, movement.ExternallyDriven); err != nil {
		deps.ECS.MarkForDestruction(id)
		return fmt.Errorf("register player: %w", err)
	}
	deps.World.Add(world.EntityInfo{
		ID:        id,
		Kind:      world.KindPlayer,
		Name:      fmt.Sprintf("player-%d", sess.ID),
		SessionID: sess.ID,
		Cell:      spawn,
	})
	sess.BindEntity(id)
	sess.SetState(packet.StateInWorld)

	mode := "server_path"
	if cfg.Movement.ClientReported {
		mode = "client_reported"
	}
	sendPacket(sess, deps, packet.S_OPCODE_WELCOME, packet.Welcome{
		Entity: uint64(id),
		X:      spawn.X,
		Y:      spawn.Y,
		Speed:  cfg.Movement.PlayerSpeed,
		Uptime: deps.Engine.GetServerUptime(),
		Mode:   mode,
	})

	// Current positions of everything in view, as zero-duration moves.
	now := deps.Engine.GetServerUptime()
	for _, snap := range deps.Engine.GetAllEntitiesSnapshot() {
		if snap.ID == id || grid.Chebyshev(snap.Cell, spawn) > deps.World.ViewRange() {
			continue
		}
		c := packet.Cell{X: snap.Cell.X, Y: snap.Cell.Y}
		sendPacket(sess, deps, packet.S_OPCODE_MOVE, packet.Move{
			Entity:    uint64(snap.ID),
			From:      c,
			To:        c,
			Timestamp: now,
		})
	}

	if deps.Broadcast != nil {
		deps.Broadcast.Announce(id, spawn, sess.ID)
	}

	deps.Log.Info(fmt.Sprintf("玩家進入世界  session=%d  entity=%s", sess.ID, id),
		zap.Stringer("cell", spawn))
	return nil
}

// LeaveWorld queues the session's entity for destruction. The engine,
// patrol controller and directory drop it together at the next cleanup.
func LeaveWorld(sessionID uint64, deps *Deps) {
	id, ok := deps.World.BySession(sessionID)
	if !ok {
		return
	}
	deps.ECS.MarkForDestruction(id)
	deps.Log.Info(fmt.Sprintf("玩家離線  session=%d  entity=%s", sessionID, id))
}

func sendPacket(sess *net.Session, deps *Deps, op string, payload any) {
	data, err := packet.Encode(op, payload)
	if err != nil {
		deps.Log.Error("封包編碼失敗", zap.String("op", op), zap.Error(err))
		return
	}
	sess.Send(data)
}
