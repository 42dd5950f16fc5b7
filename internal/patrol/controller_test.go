package patrol

import (
	"testing"

	"github.com/l1jgo/gridmove/internal/core/ecs"
	"github.com/l1jgo/gridmove/internal/grid"
	"github.com/l1jgo/gridmove/internal/movement"
	"github.com/l1jgo/gridmove/internal/pathfind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingMover wraps a real engine and counts RequestMove calls.
type countingMover struct {
	*movement.Engine
	requests int
}

func (m *countingMover) RequestMove(id ecs.EntityID, path []grid.Cell) error {
	m.requests++
	return m.Engine.RequestMove(id, path)
}

func setup(t *testing.T, r *grid.Rect) (*Controller, *countingMover) {
	t.Helper()
	eng := movement.NewEngine(zap.NewNop())
	m := &countingMover{Engine: eng}
	return NewController(pathfind.NewFinder(r), m, zap.NewNop()), m
}

func openRect() *grid.Rect { return &grid.Rect{MinX: 0, MinY: 0, MaxX: 9, MaxY: 9} }

func TestPatrolWalksToBThenBackToA(t *testing.T) {
	ctl, m := setup(t, openRect())
	id := ecs.EntityID(1)
	a, b := grid.Cell{X: 0, Y: 0}, grid.Cell{X: 3, Y: 0}
	require.NoError(t, m.RegisterEntity(id, a, 10, movement.SelfPaced))
	ctl.Add(id, a, b)

	assert.Equal(t, 1, ctl.Update())

	// 3 steps at 0.1s each.
	for i := 0; i < 4; i++ {
		m.Tick(0.1)
	}
	st, ok := m.GetEntityState(id)
	require.True(t, ok)
	assert.Equal(t, b, st.Current)
	assert.Equal(t, movement.Idle, st.Status)

	assert.Equal(t, 1, ctl.Update())
	r, ok := ctl.Route(id)
	require.True(t, ok)
	assert.Equal(t, a, r.Target)

	for i := 0; i < 4; i++ {
		m.Tick(0.1)
	}
	st, _ = m.GetEntityState(id)
	assert.Equal(t, a, st.Current)
}

func TestPatrolDoesNotReissueWhileMoving(t *testing.T) {
	ctl, m := setup(t, openRect())
	id := ecs.EntityID(1)
	require.NoError(t, m.RegisterEntity(id, grid.Cell{X: 0, Y: 0}, 1, movement.SelfPaced))
	ctl.Add(id, grid.Cell{X: 0, Y: 0}, grid.Cell{X: 5, Y: 5})

	ctl.Update()
	for i := 0; i < 20; i++ {
		m.Tick(0.1)
		ctl.Update()
	}
	assert.Equal(t, 1, m.requests)
}

func TestPatrolUnreachableTargetFlips(t *testing.T) {
	r := openRect()
	b := grid.Cell{X: 5, Y: 5}
	r.Block(b.Add(0, -1), b.Add(1, 0), b.Add(0, 1), b.Add(-1, 0))
	ctl, m := setup(t, r)
	id := ecs.EntityID(1)
	a := grid.Cell{X: 1, Y: 1}
	require.NoError(t, m.RegisterEntity(id, grid.Cell{X: 0, Y: 0}, 5, movement.SelfPaced))
	ctl.Add(id, a, b)

	assert.Equal(t, 0, ctl.Update())
	route, _ := ctl.Route(id)
	assert.Equal(t, a, route.Target)

	assert.Equal(t, 1, ctl.Update())
}

func TestPatrolDropsRemovedEntities(t *testing.T) {
	ctl, m := setup(t, openRect())
	id := ecs.EntityID(1)
	require.NoError(t, m.RegisterEntity(id, grid.Cell{X: 0, Y: 0}, 5, movement.SelfPaced))
	ctl.Add(id, grid.Cell{X: 0, Y: 0}, grid.Cell{X: 2, Y: 0})
	ctl.Add(ecs.EntityID(99), grid.Cell{X: 0, Y: 0}, grid.Cell{X: 2, Y: 0})

	ctl.Update()
	assert.Equal(t, 1, ctl.Len())

	m.RemoveEntity(id)
	ctl.Update()
	assert.Equal(t, 0, ctl.Len())
}

func TestPatrolSameWaypointsIsNoop(t *testing.T) {
	ctl, m := setup(t, openRect())
	id := ecs.EntityID(1)
	p := grid.Cell{X: 2, Y: 2}
	require.NoError(t, m.RegisterEntity(id, p, 5, movement.SelfPaced))
	ctl.Add(id, p, p)

	assert.Equal(t, 0, ctl.Update())
	assert.Equal(t, 0, m.requests)
}

func TestOnPathCompleteDrivesNextLeg(t *testing.T) {
	ctl, m := setup(t, openRect())
	id := ecs.EntityID(1)
	a, b := grid.Cell{X: 0, Y: 0}, grid.Cell{X: 1, Y: 0}
	require.NoError(t, m.RegisterEntity(id, a, 10, movement.SelfPaced))
	ctl.Add(id, a, b)
	ctl.Update()
	m.Tick(0.1)

	st, _ := m.GetEntityState(id)
	require.Equal(t, b, st.Current)
	require.Equal(t, movement.Idle, st.Status)

	ctl.OnPathComplete(id, b)
	assert.Equal(t, 2, m.requests)
	st, _ = m.GetEntityState(id)
	assert.Equal(t, movement.Moving, st.Status)
	require.NotNil(t, st.Pending)
	assert.Equal(t, a, *st.Pending)
}
