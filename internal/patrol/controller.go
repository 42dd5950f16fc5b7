package patrol

import (
	"errors"
	"sort"
	"sync"

	"github.com/l1jgo/gridmove/internal/core/ecs"
	"github.com/l1jgo/gridmove/internal/grid"
	"github.com/l1jgo/gridmove/internal/movement"
	"go.uber.org/zap"
)

// PathFinder is satisfied by *pathfind.Finder.
type PathFinder interface {
	FindPath(start, target grid.Cell) []grid.Cell
}

// Mover is the slice of *movement.Engine the controller drives.
type Mover interface {
	GetEntityState(id ecs.EntityID) (movement.State, bool)
	RequestMove(id ecs.EntityID, path []grid.Cell) error
}

// Route is one NPC's patrol descriptor.
type Route struct {
	Entity ecs.EntityID
	A, B   grid.Cell
	Target grid.Cell
}

func (r *Route) flip() {
	if r.Target == r.A {
		r.Target = r.B
	} else {
		r.Target = r.A
	}
}

// Controller walks NPCs back and forth between two waypoints. A route only
// gets a new path once its entity is Idle with nothing queued, so calling
// Update every tick never discards in-flight progress.
type Controller struct {
	mu     sync.Mutex
	routes map[ecs.EntityID]*Route
	finder PathFinder
	engine Mover
	log    *zap.Logger
}

func NewController(finder PathFinder, engine Mover, log *zap.Logger) *Controller {
	return &Controller{
		routes: make(map[ecs.EntityID]*Route),
		finder: finder,
		engine: engine,
		log:    log,
	}
}

// Add starts patrolling id between a and b. The first leg heads for b.
func (c *Controller) Add(id ecs.EntityID, a, b grid.Cell) {
	c.mu.Lock()
	c.routes[id] = &Route{Entity: id, A: a, B: b, Target: b}
	c.mu.Unlock()
}

// Remove implements ecs.Removable.
func (c *Controller) Remove(id ecs.EntityID) {
	c.mu.Lock()
	delete(c.routes, id)
	c.mu.Unlock()
}

func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.routes)
}

// Route returns a copy of id's descriptor.
func (c *Controller) Route(id ecs.EntityID) (Route, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.routes[id]
	if !ok {
		return Route{}, false
	}
	return *r, true
}

// Update makes one pass over every route in ascending entity order and
// returns how many new paths were handed to the engine.
func (c *Controller) Update() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]ecs.EntityID, 0, len(c.routes))
	for id := range c.routes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	issued := 0
	for _, id := range ids {
		if c.drive(c.routes[id]) {
			issued++
		}
	}
	return issued
}

// OnPathComplete re-drives a single route as soon as its previous leg ends
// instead of waiting for the next Update pass.
func (c *Controller) OnPathComplete(id ecs.EntityID, _ grid.Cell) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.routes[id]; ok {
		c.drive(r)
	}
}

// drive must be called with c.mu held.
func (c *Controller) drive(r *Route) bool {
	st, ok := c.engine.GetEntityState(r.Entity)
	if !ok {
		delete(c.routes, r.Entity)
		c.log.Debug("巡邏目標已消失", zap.Stringer("entity", r.Entity))
		return false
	}
	if st.Status != movement.Idle || len(st.Queue) > 0 {
		return false
	}
	if st.Current == r.Target {
		r.flip()
	}

	path := c.finder.FindPath(st.Current, r.Target)
	if len(path) == 0 {
		c.log.Debug("巡邏路徑不可達",
			zap.Stringer("entity", r.Entity),
			zap.Stringer("from", st.Current),
			zap.Stringer("target", r.Target))
		r.flip()
		return false
	}
	if len(path) == 1 {
		// A == B: nowhere to go.
		return false
	}

	if err := c.engine.RequestMove(r.Entity, path); err != nil {
		if errors.Is(err, movement.ErrUnknownEntity) {
			delete(c.routes, r.Entity)
			return false
		}
		c.log.Warn("巡邏移動請求失敗", zap.Stringer("entity", r.Entity), zap.Error(err))
		return false
	}
	return true
}
