package world

import (
	"testing"

	"github.com/l1jgo/gridmove/internal/core/ecs"
	"github.com/l1jgo/gridmove/internal/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddGetRemove(t *testing.T) {
	s := NewState(20)
	s.Add(EntityInfo{ID: 1, Kind: KindPlayer, Name: "alice", SessionID: 10, Cell: grid.Cell{X: 5, Y: 5}})
	s.Add(EntityInfo{ID: 2, Kind: KindNpc, Name: "guard", Cell: grid.Cell{X: 6, Y: 5}})

	e, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "alice", e.Name)

	id, ok := s.BySession(10)
	require.True(t, ok)
	assert.Equal(t, ecs.EntityID(1), id)

	players, npcs := s.Counts()
	assert.Equal(t, 1, players)
	assert.Equal(t, 1, npcs)

	s.Remove(1)
	_, ok = s.Get(1)
	assert.False(t, ok)
	_, ok = s.BySession(10)
	assert.False(t, ok)
	assert.Empty(t, s.ViewersOf(grid.Cell{X: 5, Y: 5}))

	s.Remove(1) // twice is fine
}

func TestViewersOfUsesChebyshevRange(t *testing.T) {
	s := NewState(20)
	s.Add(EntityInfo{ID: 1, SessionID: 11, Cell: grid.Cell{X: 0, Y: 0}})
	s.Add(EntityInfo{ID: 2, SessionID: 12, Cell: grid.Cell{X: 20, Y: 20}})
	s.Add(EntityInfo{ID: 3, SessionID: 13, Cell: grid.Cell{X: 21, Y: 0}})
	s.Add(EntityInfo{ID: 4, Kind: KindNpc, Cell: grid.Cell{X: 1, Y: 1}})
	s.Add(EntityInfo{ID: 5, SessionID: 15, Cell: grid.Cell{X: -15, Y: -3}})

	assert.Equal(t, []uint64{11, 12, 15}, s.ViewersOf(grid.Cell{X: 0, Y: 0}))

	s.UpdateCell(3, grid.Cell{X: 19, Y: 0})
	assert.Equal(t, []uint64{11, 12, 13, 15}, s.ViewersOf(grid.Cell{X: 0, Y: 0}))

	s.UpdateCell(1, grid.Cell{X: 100, Y: 100})
	assert.Equal(t, []uint64{12, 13, 15}, s.ViewersOf(grid.Cell{X: 0, Y: 0}))
}

func TestWideViewRangeScansMoreCells(t *testing.T) {
	s := NewState(45)
	s.Add(EntityInfo{ID: 1, SessionID: 1, Cell: grid.Cell{X: 44, Y: 0}})
	s.Add(EntityInfo{ID: 2, SessionID: 2, Cell: grid.Cell{X: 46, Y: 0}})
	assert.Equal(t, []uint64{1}, s.ViewersOf(grid.Cell{X: 0, Y: 0}))
}

func TestViolations(t *testing.T) {
	s := NewState(20)
	s.Add(EntityInfo{ID: 1, SessionID: 1})
	assert.Equal(t, 1, s.AddViolation(1))
	assert.Equal(t, 2, s.AddViolation(1))
	s.ResetViolations(1)
	assert.Equal(t, 1, s.AddViolation(1))
	assert.Equal(t, 0, s.AddViolation(99))
}

func TestReAddReplaces(t *testing.T) {
	s := NewState(20)
	s.Add(EntityInfo{ID: 1, SessionID: 1, Cell: grid.Cell{X: 0, Y: 0}})
	s.Add(EntityInfo{ID: 1, SessionID: 2, Cell: grid.Cell{X: 200, Y: 200}})

	_, ok := s.BySession(1)
	assert.False(t, ok)
	assert.Empty(t, s.ViewersOf(grid.Cell{X: 0, Y: 0}))
	assert.Equal(t, []uint64{2}, s.ViewersOf(grid.Cell{X: 200, Y: 200}))
	assert.Len(t, s.All(), 1)
}

func TestAOINegativeCoordinates(t *testing.T) {
	assert.Equal(t, int32(-1), toCellCoord(-1))
	assert.Equal(t, int32(-1), toCellCoord(-20))
	assert.Equal(t, int32(-2), toCellCoord(-21))
	assert.Equal(t, int32(0), toCellCoord(19))
}
