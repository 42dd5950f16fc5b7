package system

import (
	"time"

	coresys "github.com/l1jgo/gridmove/internal/core/system"
	"github.com/l1jgo/gridmove/internal/handler"
	"github.com/l1jgo/gridmove/internal/net"
	"go.uber.org/zap"
)

// SessionSource is the gateway side of session lifecycle. *net.Server
// satisfies it.
type SessionSource interface {
	NewSessions() <-chan *net.Session
	DeadSessions() <-chan uint64
}

// InputSystem admits new sessions into the world and retires dead ones.
// Inbound frames are dispatched on each connection's read goroutine, so
// only lifecycle passes through the tick. Phase 0 (Input).
type InputSystem struct {
	src  SessionSource
	deps *handler.Deps
	log  *zap.Logger
}

func NewInputSystem(src SessionSource, deps *handler.Deps) *InputSystem {
	return &InputSystem{src: src, deps: deps, log: deps.Log}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	for {
		select {
		case sess := <-s.src.NewSessions():
			if err := handler.EnterWorld(sess, s.deps); err != nil {
				s.log.Error("進入世界失敗", zap.Uint64("session", sess.ID), zap.Error(err))
				sess.Close()
			}
		default:
			goto doneNew
		}
	}
doneNew:

	for {
		select {
		case id := <-s.src.DeadSessions():
			handler.LeaveWorld(id, s.deps)
		default:
			return
		}
	}
}
