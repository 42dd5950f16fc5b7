package system

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/l1jgo/gridmove/internal/config"
	"github.com/l1jgo/gridmove/internal/core/ecs"
	"github.com/l1jgo/gridmove/internal/core/event"
	coresys "github.com/l1jgo/gridmove/internal/core/system"
	"github.com/l1jgo/gridmove/internal/grid"
	"github.com/l1jgo/gridmove/internal/handler"
	"github.com/l1jgo/gridmove/internal/movement"
	"github.com/l1jgo/gridmove/internal/net"
	"github.com/l1jgo/gridmove/internal/net/packet"
	"github.com/l1jgo/gridmove/internal/pathfind"
	"github.com/l1jgo/gridmove/internal/patrol"
	"github.com/l1jgo/gridmove/internal/persist"
	"github.com/l1jgo/gridmove/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	newCh  chan *net.Session
	deadCh chan uint64
}

func (f *fakeSource) NewSessions() <-chan *net.Session { return f.newCh }
func (f *fakeSource) DeadSessions() <-chan uint64      { return f.deadCh }

type mapOutbox map[uint64]*net.Session

func (m mapOutbox) SendTo(id uint64, data []byte) bool {
	s, ok := m[id]
	if !ok {
		return false
	}
	s.Send(data)
	return true
}

func (m mapOutbox) SessionIDs() []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return ids
}

func newDeps(outbox mapOutbox) *handler.Deps {
	cfg := config.Default()
	rect := &grid.Rect{MinX: 0, MinY: 0, MaxX: 20, MaxY: 20}
	log := zap.NewNop()
	deps := &handler.Deps{
		Config:    cfg,
		Log:       log,
		ECS:       ecs.NewWorld(),
		World:     world.NewState(cfg.Movement.ViewRange),
		Engine:    movement.NewEngine(log),
		Finder:    pathfind.NewFinder(rect),
		Validator: movement.NewValidator(rect, movement.Tolerances{SpeedMultiplier: 1.5}),
		Bus:       event.NewBus(),
		Outbox:    outbox,
		Stats:     &handler.Stats{},
	}
	deps.Broadcast = handler.NewBroadcaster(deps)
	deps.Engine.AddSink(deps.Broadcast)
	deps.ECS.Registry().Register(deps.Engine, deps.World)
	return deps
}

func lastOp(t *testing.T, sess *net.Session) string {
	t.Helper()
	op := ""
	for {
		select {
		case data := <-sess.OutQueue:
			r, err := packet.NewReader(data)
			require.NoError(t, err)
			op = r.Op()
		default:
			return op
		}
	}
}

func TestSessionLifecycleThroughTick(t *testing.T) {
	outbox := mapOutbox{}
	deps := newDeps(outbox)
	src := &fakeSource{newCh: make(chan *net.Session, 4), deadCh: make(chan uint64, 4)}

	runner := coresys.NewRunner()
	runner.Register(NewInputSystem(src, deps))
	runner.Register(NewMovementSystem(deps.Engine))
	runner.Register(NewEventSystem(deps.Bus))
	runner.Register(NewCleanupSystem(deps.ECS, deps.Bus))
	Subscribe(deps.Bus, nil, deps.Broadcast, deps.Log)

	a := net.NewSession(nil, 1, net.SessionOptions{}, zap.NewNop())
	b := net.NewSession(nil, 2, net.SessionOptions{}, zap.NewNop())
	outbox[1], outbox[2] = a, b
	src.newCh <- a
	src.newCh <- b
	runner.Tick(50 * time.Millisecond)

	assert.Equal(t, packet.StateInWorld, a.State())
	assert.Equal(t, packet.StateInWorld, b.State())
	assert.Equal(t, 2, deps.Engine.Len())
	assert.InDelta(t, 0.05, deps.Engine.GetServerUptime(), 1e-9)
	lastOp(t, a)

	delete(outbox, 2)
	src.deadCh <- 2
	runner.Tick(50 * time.Millisecond) // cleanup emits EntityRemoved
	assert.Equal(t, 1, deps.Engine.Len())
	_, ok := deps.World.BySession(2)
	assert.False(t, ok)

	runner.Tick(50 * time.Millisecond) // event phase delivers it
	assert.Equal(t, packet.S_OPCODE_REMOVE, lastOp(t, a))
}

func TestClosedSessionIsNotAdmitted(t *testing.T) {
	deps := newDeps(mapOutbox{})
	src := &fakeSource{newCh: make(chan *net.Session, 1), deadCh: make(chan uint64)}
	sess := net.NewSession(nil, 9, net.SessionOptions{}, zap.NewNop())
	sess.Close()
	src.newCh <- sess

	NewInputSystem(src, deps).Update(0)
	assert.Zero(t, deps.Engine.Len())
}

func TestPatrolSystemRunsOnInterval(t *testing.T) {
	deps := newDeps(mapOutbox{})
	ctrl := patrol.NewController(deps.Finder, deps.Engine, zap.NewNop())
	id := deps.ECS.CreateEntity()
	require.NoError(t, deps.Engine.RegisterEntity(id, grid.Cell{X: 1, Y: 1}, 2, movement.SelfPaced))
	ctrl.Add(id, grid.Cell{X: 1, Y: 1}, grid.Cell{X: 3, Y: 1})

	sys := NewPatrolSystem(ctrl, 250*time.Millisecond)
	assert.Equal(t, coresys.PhaseAI, sys.Phase())

	sys.Update(100 * time.Millisecond)
	sys.Update(100 * time.Millisecond)
	st, _ := deps.Engine.GetEntityState(id)
	assert.Equal(t, movement.Idle, st.Status)

	sys.Update(100 * time.Millisecond)
	st, _ = deps.Engine.GetEntityState(id)
	assert.Equal(t, movement.Moving, st.Status)
	require.NotNil(t, st.Pending)
	assert.Equal(t, grid.Cell{X: 2, Y: 1}, *st.Pending)
}

func TestPatrolSystemKeepsOvershoot(t *testing.T) {
	deps := newDeps(mapOutbox{})
	ctrl := patrol.NewController(deps.Finder, deps.Engine, zap.NewNop())
	sys := NewPatrolSystem(ctrl, 250*time.Millisecond)

	first := deps.ECS.CreateEntity()
	require.NoError(t, deps.Engine.RegisterEntity(first, grid.Cell{X: 1, Y: 1}, 2, movement.SelfPaced))
	ctrl.Add(first, grid.Cell{X: 1, Y: 1}, grid.Cell{X: 3, Y: 1})
	sys.Update(300 * time.Millisecond) // 50ms carried over

	second := deps.ECS.CreateEntity()
	require.NoError(t, deps.Engine.RegisterEntity(second, grid.Cell{X: 5, Y: 5}, 2, movement.SelfPaced))
	ctrl.Add(second, grid.Cell{X: 5, Y: 5}, grid.Cell{X: 7, Y: 5})

	sys.Update(200 * time.Millisecond)
	st, _ := deps.Engine.GetEntityState(second)
	assert.Equal(t, movement.Moving, st.Status, "second pass due at 500ms total")
}

func TestPathCompleteDrivesNextLeg(t *testing.T) {
	deps := newDeps(mapOutbox{})
	ctrl := patrol.NewController(deps.Finder, deps.Engine, zap.NewNop())
	Subscribe(deps.Bus, ctrl, deps.Broadcast, deps.Log)

	id := deps.ECS.CreateEntity()
	require.NoError(t, deps.Engine.RegisterEntity(id, grid.Cell{X: 1, Y: 1}, 2, movement.SelfPaced))
	ctrl.Add(id, grid.Cell{X: 1, Y: 1}, grid.Cell{X: 2, Y: 1})
	require.Equal(t, 1, ctrl.Update())

	deps.Engine.Tick(0.5) // arrives at B, PathComplete emitted
	st, _ := deps.Engine.GetEntityState(id)
	require.Equal(t, movement.Idle, st.Status)

	events := NewEventSystem(deps.Bus)
	events.Update(0)

	st, _ = deps.Engine.GetEntityState(id)
	assert.Equal(t, movement.Moving, st.Status)
	require.NotNil(t, st.Pending)
	assert.Equal(t, grid.Cell{X: 1, Y: 1}, *st.Pending)
	r, _ := ctrl.Route(id)
	assert.Equal(t, grid.Cell{X: 1, Y: 1}, r.Target)
}

type flakyWriter struct {
	fail    bool
	written []persist.Violation
}

func (w *flakyWriter) WriteBatch(_ context.Context, entries []persist.Violation) error {
	if w.fail {
		return errors.New("connection refused")
	}
	w.written = append(w.written, entries...)
	return nil
}

func TestViolationLogFlushRetries(t *testing.T) {
	buf := persist.NewViolationBuffer(8)
	w := &flakyWriter{fail: true}
	sys := NewViolationLogSystem(buf, w, 2*time.Second, zap.NewNop())

	buf.Add(persist.Violation{EntityID: 1, Reason: "SpeedHack"})
	sys.Update(time.Second)
	assert.Equal(t, 1, buf.Len(), "not due yet")

	sys.Update(time.Second)
	assert.Equal(t, 1, buf.Len(), "failed batch requeued")
	assert.Empty(t, w.written)

	w.fail = false
	buf.Add(persist.Violation{EntityID: 2, Reason: "TeleportDetected"})
	assert.Equal(t, 2, sys.Flush(context.Background()))
	assert.Zero(t, buf.Len())
	require.Len(t, w.written, 2)
	assert.Equal(t, uint64(1), w.written[0].EntityID)
}
