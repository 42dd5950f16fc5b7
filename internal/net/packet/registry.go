package packet

import (
	"fmt"

	"go.uber.org/zap"
)

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateConnected SessionState = iota // socket open, no entity yet
	StateInWorld                       // entity registered, movement ops allowed
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateInWorld:
		return "InWorld"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc is the callback signature for packet handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, r *Reader)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps ops to handlers with state-based access control.
// Register everything before the server starts; Dispatch is then called
// concurrently from every connection's read goroutine.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps an op to a handler, restricted to the given session states.
func (reg *Registry) Register(op string, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[op] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch decodes the envelope, validates the session state and calls the
// handler. Unknown ops are ignored; malformed frames and disallowed states
// return an error.
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) error {
	r, err := NewReader(data)
	if err != nil {
		return err
	}
	op := r.Op()
	reg.log.Debug("收到封包",
		zap.String("op", op),
		zap.Int("size", len(data)),
		zap.String("state", state.String()),
	)

	entry, ok := reg.handlers[op]
	if !ok {
		reg.log.Debug("未知操作碼", zap.String("op", op), zap.String("state", state.String()))
		return nil // silently ignore unknown ops
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("操作碼在此狀態下不允許",
			zap.String("op", op),
			zap.String("state", state.String()),
		)
		return fmt.Errorf("op %q not allowed in state %s", op, state)
	}

	return reg.safeCall(entry.fn, sess, r)
}

// safeCall executes a handler with panic recovery so one bad message never
// takes down the connection goroutine or the process.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, r *Reader) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("處理器 panic 已恢復",
				zap.String("op", r.Op()),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for op %q: %v", r.Op(), rec)
		}
	}()
	fn(sess, r)
	return nil
}
