package handler

import (
	"errors"

	"github.com/l1jgo/gridmove/internal/core/event"
	"github.com/l1jgo/gridmove/internal/grid"
	"github.com/l1jgo/gridmove/internal/movement"
	"github.com/l1jgo/gridmove/internal/net"
	"github.com/l1jgo/gridmove/internal/net/packet"
	"github.com/l1jgo/gridmove/internal/persist"
	"github.com/l1jgo/gridmove/internal/scripting"
	"go.uber.org/zap"
)

// HandleClick processes a click-to-move request. The server pathfinds from
// the entity's path origin (the in-flight target while moving) so the new
// queue continues seamlessly from the current step.
func HandleClick(sess *net.Session, r *packet.Reader, deps *Deps) {
	deps.Stats.Clicks.Add(1)
	if deps.Config.Movement.ClientReported {
		deps.Log.Debug("client_reported 模式下忽略 click", zap.Uint64("session", sess.ID))
		return
	}
	var target packet.Cell
	if err := r.Decode(&target); err != nil {
		deps.Log.Debug("click 格式錯誤", zap.Error(err))
		return
	}

	id := sess.Entity()
	origin, ok := deps.Engine.PathOrigin(id)
	if !ok {
		return
	}
	dest := grid.Cell{X: target.X, Y: target.Y}
	path := deps.Finder.FindPath(origin, dest)
	if len(path) == 0 {
		deps.Stats.NoPath.Add(1)
		deps.Log.Debug("無可用路徑",
			zap.Stringer("entity", id),
			zap.Stringer("from", origin),
			zap.Stringer("to", dest))
		return
	}

	if err := deps.Engine.RequestMove(id, path); err != nil {
		// EmptyPath (already there) and UnknownEntity (late message) are no-ops.
		deps.Log.Debug("移動請求未執行", zap.Stringer("entity", id), zap.Error(err))
	}
}

// HandleMoveDone processes the client's acknowledgment of a step.
func HandleMoveDone(sess *net.Session, r *packet.Reader, deps *Deps) {
	deps.Stats.Acks.Add(1)
	var reported packet.Cell
	if err := r.Decode(&reported); err != nil {
		deps.Log.Debug("move_done 格式錯誤", zap.Error(err))
		return
	}
	id := sess.Entity()
	if err := deps.Engine.OnClientMovementComplete(id, grid.Cell{X: reported.X, Y: reported.Y}); err != nil {
		deps.Log.Debug("確認未執行", zap.Stringer("entity", id), zap.Error(err))
	}
}

// HandlePosition processes a client-reported position. Accepted positions
// are committed and broadcast; rejected ones are corrected, logged and run
// through the violation policy.
func HandlePosition(sess *net.Session, r *packet.Reader, deps *Deps) {
	deps.Stats.Positions.Add(1)
	if !deps.Config.Movement.ClientReported {
		deps.Log.Debug("server_path 模式下忽略 position", zap.Uint64("session", sess.ID))
		return
	}
	var claimedMsg packet.Cell
	if err := r.Decode(&claimedMsg); err != nil {
		deps.Log.Debug("position 格式錯誤", zap.Error(err))
		return
	}
	claimed := grid.Cell{X: claimedMsg.X, Y: claimedMsg.Y}

	id := sess.Entity()
	prior, ok := deps.Engine.GetEntityState(id)
	if !ok {
		return
	}
	elapsed := deps.Engine.GetServerUptime() - prior.LastCommandAt
	verdict := deps.Validator.Validate(prior, claimed, elapsed)

	if verdict.Accepted {
		err := deps.Engine.CommitReportedPosition(id, prior.Current, claimed)
		if errors.Is(err, movement.ErrPositionMismatch) {
			// Another report from this client won the race; it will resend.
			deps.Log.Debug("位置已被更新", zap.Stringer("entity", id))
		}
		return
	}

	rejectPosition(sess, deps, prior, claimed, elapsed, verdict)
}

func rejectPosition(sess *net.Session, deps *Deps, prior movement.State, claimed grid.Cell, elapsed float64, v movement.Verdict) {
	id := prior.ID
	reason := v.Reason.String()
	deps.Stats.Rejections.Add(1)
	count := deps.World.AddViolation(id)

	action := scripting.ActionCorrect
	if deps.Scripting != nil {
		action = deps.Scripting.JudgeViolation(scripting.ViolationContext{
			Reason:    reason,
			Distance:  int(v.Distance),
			Allowed:   v.Allowed,
			Elapsed:   elapsed,
			Count:     count,
			KickAfter: deps.Config.Movement.KickAfter,
		})
	}

	deps.Log.Info("位置驗證失敗",
		zap.Stringer("entity", id),
		zap.Stringer("from", prior.Current),
		zap.Stringer("to", claimed),
		zap.String("reason", reason),
		zap.Int32("distance", v.Distance),
		zap.Float64("elapsed", elapsed),
		zap.Int("count", count),
		zap.String("action", string(action)),
	)

	deps.Stats.Corrections.Add(1)
	sendPacket(sess, deps, packet.S_OPCODE_CORRECT, packet.Correct{
		Entity: uint64(id),
		X:      prior.Current.X,
		Y:      prior.Current.Y,
		Reason: reason,
	})
	event.Emit(deps.Bus, event.PositionCorrected{Entity: id, Cell: prior.Current, Reason: reason})

	if deps.Violations != nil {
		deps.Violations.Add(persist.Violation{
			EntityID:     uint64(id),
			SessionID:    sess.ID,
			Reason:       reason,
			PriorX:       prior.Current.X,
			PriorY:       prior.Current.Y,
			ClaimedX:     claimed.X,
			ClaimedY:     claimed.Y,
			Distance:     v.Distance,
			Allowed:      v.Allowed,
			Elapsed:      elapsed,
			Action:       string(action),
			ServerUptime: deps.Engine.GetServerUptime(),
		})
	}

	if action == scripting.ActionKick {
		deps.Stats.Kicks.Add(1)
		deps.World.ResetViolations(id)
		data, err := packet.Encode(packet.S_OPCODE_KICK, packet.Kick{Reason: reason})
		if err != nil {
			sess.Close()
			return
		}
		sess.SendAndClose(data)
	}
}
