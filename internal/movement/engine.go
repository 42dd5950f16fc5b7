package movement

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/l1jgo/gridmove/internal/core/ecs"
	"github.com/l1jgo/gridmove/internal/grid"
	"go.uber.org/zap"
)

// stepEpsilon absorbs float drift when accumulated tick time is compared
// against a step duration (0.1 added five times is not exactly 0.5).
const stepEpsilon = 1e-9

// entityState is the engine-owned record for one entity. Held by pointer in
// the table so updates happen in place under mu.
type entityState struct {
	mu sync.Mutex

	id          ecs.EntityID
	kind        Kind
	current     grid.Cell
	pending     grid.Cell
	moving      bool // pending is valid; Status == Moving
	queue       []grid.Cell
	speed       float64
	awaitingAck bool
	sinceLast   float64
	lastCmdAt   float64
	removed     bool // set once under mu; removed records never emit again
}

func (s *entityState) stepDuration() float64 { return 1 / s.speed }

func (s *entityState) status() Status {
	if s.moving {
		return Moving
	}
	return Idle
}

func (s *entityState) copyOut() State {
	st := State{
		ID:               s.id,
		Kind:             s.kind,
		Current:          s.current,
		Status:           s.status(),
		Speed:            s.speed,
		AwaitingAck:      s.awaitingAck,
		SinceLastCommand: s.sinceLast,
		LastCommandAt:    s.lastCmdAt,
	}
	if s.moving {
		p := s.pending
		st.Pending = &p
	}
	if len(s.queue) > 0 {
		st.Queue = append([]grid.Cell(nil), s.queue...)
	}
	return st
}

// EngineStats are cumulative counters, readable from any goroutine.
type EngineStats struct {
	Commands       int64
	PathsCompleted int64
	Mismatches     int64
}

// Engine owns all entity movement state and the server uptime clock.
//
// Locking: mu guards the table only (lookup, insert, delete). Each record
// has its own mutex, so operations on different entities never wait on each
// other. Order is always table lock → record lock, never the reverse.
type Engine struct {
	mu    sync.RWMutex
	table *ecs.PtrComponentStore[entityState]

	uptime atomic.Uint64 // float64 bits, seconds
	sinks  atomic.Pointer[[]Sink]

	commands   atomic.Int64
	completed  atomic.Int64
	mismatches atomic.Int64

	log *zap.Logger
}

func NewEngine(log *zap.Logger, sinks ...Sink) *Engine {
	e := &Engine{
		table: ecs.NewPtrComponentStore[entityState](),
		log:   log,
	}
	list := append([]Sink(nil), sinks...)
	e.sinks.Store(&list)
	return e
}

// AddSink appends an output sink. Intended for wiring at startup.
func (e *Engine) AddSink(s Sink) {
	for {
		old := e.sinks.Load()
		list := append(append([]Sink(nil), (*old)...), s)
		if e.sinks.CompareAndSwap(old, &list) {
			return
		}
	}
}

// GetServerUptime returns the simulation clock in seconds. It only moves
// forward, once per Tick, by that tick's delta.
func (e *Engine) GetServerUptime() float64 {
	return math.Float64frombits(e.uptime.Load())
}

func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Commands:       e.commands.Load(),
		PathsCompleted: e.completed.Load(),
		Mismatches:     e.mismatches.Load(),
	}
}

func (e *Engine) lookup(id ecs.EntityID) *entityState {
	e.mu.RLock()
	rec, _ := e.table.Get(id)
	e.mu.RUnlock()
	return rec
}

// RegisterEntity installs fresh idle state at spawn. Registering an id that
// already exists replaces its state; the old record stops emitting.
func (e *Engine) RegisterEntity(id ecs.EntityID, spawn grid.Cell, speed float64, kind Kind) error {
	if !(speed > 0) || math.IsInf(speed, 0) {
		return ErrInvalidSpeed
	}
	rec := &entityState{
		id:        id,
		kind:      kind,
		current:   spawn,
		speed:     speed,
		lastCmdAt: e.GetServerUptime(), // elapsed for the first reported position counts from spawn
	}

	e.mu.Lock()
	old, _ := e.table.Get(id)
	e.table.Set(id, rec)
	e.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		old.removed = true
		old.mu.Unlock()
	}
	e.log.Debug("entity registered",
		zap.Stringer("entity", id),
		zap.Stringer("cell", spawn),
		zap.Float64("speed", speed),
		zap.Stringer("kind", kind),
	)
	return nil
}

// RemoveEntity deletes all state for id. Once it returns, no further command
// or notification is emitted for id, even if a Tick is running concurrently.
func (e *Engine) RemoveEntity(id ecs.EntityID) {
	e.mu.Lock()
	rec := e.table.Remove(id)
	e.mu.Unlock()
	if rec == nil {
		return
	}
	rec.mu.Lock()
	rec.removed = true
	rec.queue = nil
	rec.mu.Unlock()
	e.log.Debug("entity removed", zap.Stringer("entity", id))
}

// Remove implements ecs.Removable.
func (e *Engine) Remove(id ecs.EntityID) { e.RemoveEntity(id) }

// GetEntityState returns a copy of the entity's state.
func (e *Engine) GetEntityState(id ecs.EntityID) (State, bool) {
	rec := e.lookup(id)
	if rec == nil {
		return State{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return State{}, false
	}
	return rec.copyOut(), true
}

// GetAllEntitiesSnapshot returns every tracked entity in ascending id order.
func (e *Engine) GetAllEntitiesSnapshot() []Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Snapshot, 0, e.table.Len())
	e.table.Each(func(id ecs.EntityID, rec *entityState) {
		rec.mu.Lock()
		out = append(out, Snapshot{ID: id, Cell: rec.current, Status: rec.status()})
		rec.mu.Unlock()
	})
	return out
}

// Len returns the number of tracked entities.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.table.Len()
}

// PathOrigin is the cell a new path for id should start from: the in-flight
// target while moving, otherwise the current cell.
func (e *Engine) PathOrigin(id ecs.EntityID) (grid.Cell, bool) {
	rec := e.lookup(id)
	if rec == nil {
		return grid.Cell{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return grid.Cell{}, false
	}
	if rec.moving {
		return rec.pending, true
	}
	return rec.current, true
}

// RequestMove hands a path to the entity. While idle the first step is
// dispatched immediately. While moving the in-flight step is kept and only
// the queue is replaced, starting after the in-flight target.
func (e *Engine) RequestMove(id ecs.EntityID, path []grid.Cell) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}
	rec := e.lookup(id)
	if rec == nil {
		return ErrUnknownEntity
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return ErrUnknownEntity
	}

	origin := rec.current
	if rec.moving {
		origin = rec.pending
	}
	trimmed := trimPath(path, rec.current, origin, rec.moving)
	if len(trimmed) == 0 {
		if rec.moving {
			// Target is the in-flight cell: stop there.
			rec.queue = nil
			return nil
		}
		return ErrEmptyPath
	}
	if !connected(origin, trimmed) {
		// The caller replaced the route; never keep walking the old one.
		rec.queue = nil
		return ErrDisjointPath
	}

	rec.queue = trimmed
	if !rec.moving {
		e.dispatchNext(rec, e.GetServerUptime(), 0)
	}
	return nil
}

// OnClientMovementComplete acknowledges the in-flight command of an
// externally driven entity. The reported cell wins over the expected one;
// a mismatch is logged and the engine resynchronizes to the client.
func (e *Engine) OnClientMovementComplete(id ecs.EntityID, reported grid.Cell) error {
	rec := e.lookup(id)
	if rec == nil {
		return ErrUnknownEntity
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return ErrUnknownEntity
	}
	if rec.kind != ExternallyDriven {
		return ErrSelfPaced
	}
	if !rec.awaitingAck {
		return ErrNoCommandInFlight
	}

	rec.awaitingAck = false
	if rec.moving && reported != rec.pending {
		e.mismatches.Add(1)
		e.log.Warn("position mismatch on acknowledgment",
			zap.Stringer("entity", id),
			zap.Stringer("expected", rec.pending),
			zap.Stringer("reported", reported),
		)
	}
	rec.current = reported
	for len(rec.queue) > 0 && rec.queue[0] == reported {
		rec.queue = rec.queue[1:]
	}
	if len(rec.queue) > 0 && !grid.Adjacent(reported, rec.queue[0]) {
		// Off the path after a resync: stop here and let the caller re-path.
		e.log.Debug("queue dropped after resync",
			zap.Stringer("entity", id),
			zap.Stringer("cell", reported),
			zap.Stringer("next", rec.queue[0]),
		)
		rec.queue = nil
	}

	if len(rec.queue) > 0 {
		e.dispatchNext(rec, e.GetServerUptime(), 0)
		return nil
	}
	e.finishPath(rec)
	return nil
}

// CommitReportedPosition applies a client-reported position that already
// passed validation against prior. It fails with ErrPositionMismatch if the
// entity moved in between. Any queued path is discarded: in this mode the
// client is the source of movement. The broadcast duration is distance/speed.
func (e *Engine) CommitReportedPosition(id ecs.EntityID, prior, claimed grid.Cell) error {
	rec := e.lookup(id)
	if rec == nil {
		return ErrUnknownEntity
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return ErrUnknownEntity
	}
	if rec.current != prior {
		return ErrPositionMismatch
	}

	now := e.GetServerUptime()
	dist := grid.Manhattan(prior, claimed)
	rec.current = claimed
	rec.moving = false
	rec.queue = nil
	rec.awaitingAck = false
	rec.sinceLast = 0
	rec.lastCmdAt = now
	if dist > 0 {
		e.emitCommand(Command{
			Entity:    id,
			From:      prior,
			To:        claimed,
			Duration:  float64(dist) / rec.speed,
			Timestamp: now,
		})
	}
	return nil
}

// Tick advances the uptime clock by dt seconds and every entity with it.
// dt should be the measured time since the previous tick.
func (e *Engine) Tick(dt float64) {
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}
	now := e.GetServerUptime() + dt
	e.uptime.Store(math.Float64bits(now))

	e.mu.RLock()
	recs := make([]*entityState, 0, e.table.Len())
	e.table.Each(func(_ ecs.EntityID, rec *entityState) {
		recs = append(recs, rec)
	})
	e.mu.RUnlock()

	for _, rec := range recs {
		rec.mu.Lock()
		if !rec.removed {
			e.advance(rec, dt, now)
		}
		rec.mu.Unlock()
	}
}

// advance runs one tick for rec. Caller holds rec.mu.
func (e *Engine) advance(rec *entityState, dt, now float64) {
	if !rec.moving {
		if len(rec.queue) > 0 && !rec.awaitingAck {
			e.dispatchNext(rec, now, 0)
		}
		return
	}

	rec.sinceLast += dt
	if rec.kind == ExternallyDriven {
		// Completion arrives through OnClientMovementComplete.
		return
	}

	step := rec.stepDuration()
	for rec.moving && rec.sinceLast+stepEpsilon >= step {
		carry := rec.sinceLast - step
		if carry < 0 {
			carry = 0
		}
		finishedAt := rec.lastCmdAt + step
		rec.current = rec.pending
		if len(rec.queue) == 0 {
			e.finishPath(rec)
			return
		}
		// Chain the next step at the instant the previous one finished so
		// consecutive timestamps are exactly one step apart.
		e.dispatchNext(rec, finishedAt, carry)
	}
}

// dispatchNext pops the queue head into the in-flight slot and emits its
// command. Caller holds rec.mu and guarantees a non-empty queue.
func (e *Engine) dispatchNext(rec *entityState, at, carry float64) {
	next := rec.queue[0]
	rec.queue = rec.queue[1:]
	if len(rec.queue) == 0 {
		rec.queue = nil
	}
	rec.pending = next
	rec.moving = true
	rec.sinceLast = carry
	rec.lastCmdAt = at
	if rec.kind == ExternallyDriven {
		rec.awaitingAck = true
	}
	e.emitCommand(Command{
		Entity:    rec.id,
		From:      rec.current,
		To:        next,
		Duration:  rec.stepDuration(),
		Timestamp: at,
	})
}

// finishPath moves rec to idle and notifies sinks. Caller holds rec.mu.
func (e *Engine) finishPath(rec *entityState) {
	rec.moving = false
	rec.sinceLast = 0
	rec.queue = nil
	e.completed.Add(1)
	for _, s := range *e.sinks.Load() {
		s.OnEntityPathComplete(rec.id, rec.current)
	}
}

func (e *Engine) emitCommand(cmd Command) {
	e.commands.Add(1)
	for _, s := range *e.sinks.Load() {
		s.OnSendMoveCommand(cmd)
	}
}

// trimPath drops everything up to the in-flight target when moving, or the
// leading cells the entity occupies when idle, so the queue head is never
// the cell the next command starts from.
func trimPath(path []grid.Cell, current, origin grid.Cell, moving bool) []grid.Cell {
	if moving {
		// current is only left behind once the in-flight step lands, so a
		// head equal to it is a legal reversal.
		for i, c := range path {
			if c == origin {
				path = path[i+1:]
				break
			}
		}
		for len(path) > 0 && path[0] == origin {
			path = path[1:]
		}
	} else {
		for len(path) > 0 && path[0] == current {
			path = path[1:]
		}
	}
	if len(path) == 0 {
		return nil
	}
	return append([]grid.Cell(nil), path...)
}

// connected reports whether path is a 4-connected walk starting next to from.
func connected(from grid.Cell, path []grid.Cell) bool {
	prev := from
	for _, c := range path {
		if !grid.Adjacent(prev, c) {
			return false
		}
		prev = c
	}
	return true
}
