package world

import (
	"sort"
	"sync"

	"github.com/l1jgo/gridmove/internal/core/ecs"
	"github.com/l1jgo/gridmove/internal/grid"
)

// Kind tells players apart from NPCs in the directory.
type Kind uint8

const (
	KindPlayer Kind = iota
	KindNpc
)

func (k Kind) String() string {
	if k == KindNpc {
		return "npc"
	}
	return "player"
}

// EntityInfo is the directory record for one in-world entity. Movement
// state itself lives in the engine; Cell is the last cell announced to
// clients and only drives AOI lookups.
type EntityInfo struct {
	ID         ecs.EntityID
	Kind       Kind
	Name       string
	SessionID  uint64 // 0 for NPCs
	Cell       grid.Cell
	Violations int // validator rejections since spawn
}

// State is the entity directory: who exists, who is bound to which
// session, and who can see whom. Safe for concurrent use; the tick
// goroutine and connection read goroutines both touch it.
type State struct {
	mu        sync.RWMutex
	byID      map[ecs.EntityID]*EntityInfo
	bySession map[uint64]ecs.EntityID
	aoi       *AOIGrid
	viewRange int32

	// 可重用 AOI 查詢 buffer（僅在持有寫鎖時使用）
	aoiBuf []ecs.EntityID
}

func NewState(viewRange int32) *State {
	if viewRange <= 0 {
		viewRange = cellSize
	}
	return &State{
		byID:      make(map[ecs.EntityID]*EntityInfo),
		bySession: make(map[uint64]ecs.EntityID),
		aoi:       NewAOIGrid(),
		viewRange: viewRange,
	}
}

func (s *State) ViewRange() int32 { return s.viewRange }

// Add registers an entity. A second Add for the same id replaces the first.
func (s *State) Add(info EntityInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[info.ID]; ok {
		s.removeLocked(old)
	}
	e := info
	s.byID[e.ID] = &e
	if e.SessionID != 0 {
		s.bySession[e.SessionID] = e.ID
	}
	s.aoi.Add(e.ID, e.Cell.X, e.Cell.Y)
}

// Remove implements ecs.Removable.
func (s *State) Remove(id ecs.EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[id]; ok {
		s.removeLocked(e)
	}
}

func (s *State) removeLocked(e *EntityInfo) {
	s.aoi.Remove(e.ID, e.Cell.X, e.Cell.Y)
	if e.SessionID != 0 && s.bySession[e.SessionID] == e.ID {
		delete(s.bySession, e.SessionID)
	}
	delete(s.byID, e.ID)
}

// Get returns a copy of the entity record.
func (s *State) Get(id ecs.EntityID) (EntityInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return EntityInfo{}, false
	}
	return *e, true
}

// BySession returns the entity bound to a network session.
func (s *State) BySession(sessionID uint64) (ecs.EntityID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySession[sessionID]
	return id, ok
}

// UpdateCell moves an entity in the AOI grid.
func (s *State) UpdateCell(id ecs.EntityID, c grid.Cell) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.byID[id]
	if e == nil {
		return
	}
	s.aoi.Move(id, e.Cell.X, e.Cell.Y, c.X, c.Y)
	e.Cell = c
}

// ViewersOf returns the session ids of players within view range of c
// (Chebyshev distance), in ascending session order.
func (s *State) ViewersOf(c grid.Cell) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aoiBuf = s.aoi.GetNearbyInto(c.X, c.Y, s.viewRange, s.aoiBuf)
	var out []uint64
	for _, id := range s.aoiBuf {
		e := s.byID[id]
		if e == nil || e.SessionID == 0 {
			continue
		}
		if grid.Chebyshev(e.Cell, c) <= s.viewRange {
			out = append(out, e.SessionID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddViolation bumps the rejection counter and returns the new total.
func (s *State) AddViolation(id ecs.EntityID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.byID[id]
	if e == nil {
		return 0
	}
	e.Violations++
	return e.Violations
}

// ResetViolations clears the counter (after a kick or a clean period).
func (s *State) ResetViolations(id ecs.EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.byID[id]; e != nil {
		e.Violations = 0
	}
}

// Counts returns (players, npcs) currently in-world.
func (s *State) Counts() (players, npcs int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.byID {
		if e.Kind == KindNpc {
			npcs++
		} else {
			players++
		}
	}
	return players, npcs
}

// All returns copies of every record in ascending id order.
func (s *State) All() []EntityInfo {
	s.mu.RLock()
	out := make([]EntityInfo, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, *e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
