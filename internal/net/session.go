package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/l1jgo/gridmove/internal/core/ecs"
	"github.com/l1jgo/gridmove/internal/net/packet"
	"go.uber.org/zap"
)

// SessionOptions carries the [network] limits applied to every connection.
type SessionOptions struct {
	OutQueueSize   int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

// MessageHandler receives every inbound frame on the session's read goroutine.
type MessageHandler func(s *Session, data []byte)

// Session represents a single websocket client. Network I/O runs in two
// dedicated goroutines; Send may be called from any goroutine.
type Session struct {
	ID   uint64
	conn *websocket.Conn

	state  atomic.Int32  // packet.SessionState stored as int32
	entity atomic.Uint64 // bound ecs.EntityID, 0 until in-world

	OutQueue chan []byte // writer goroutine reads from here; nil entry = flush then close

	IP string

	opts      SessionOptions
	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	onClose   func(*Session)

	log *zap.Logger
}

func NewSession(conn *websocket.Conn, id uint64, opts SessionOptions, log *zap.Logger) *Session {
	if opts.OutQueueSize <= 0 {
		opts.OutQueueSize = 256
	}
	s := &Session{
		ID:       id,
		conn:     conn,
		OutQueue: make(chan []byte, opts.OutQueueSize),
		opts:     opts,
		closeCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("session", id)),
	}
	if conn != nil {
		s.IP = conn.RemoteAddr().String()
	}
	s.state.Store(int32(packet.StateConnected))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// Entity returns the entity this session controls, or zero.
func (s *Session) Entity() ecs.EntityID { return ecs.EntityID(s.entity.Load()) }

func (s *Session) BindEntity(id ecs.EntityID) { s.entity.Store(uint64(id)) }

// Start launches the reader and writer goroutines. onClose runs exactly
// once after the connection is gone.
func (s *Session) Start(handle MessageHandler, onClose func(*Session)) {
	s.onClose = onClose
	go s.readLoop(handle)
	go s.writeLoop()
}

// Send queues a frame for the writer goroutine. Non-blocking: if OutQueue
// is full the session is disconnected (backpressure on slow consumers).
func (s *Session) Send(data []byte) {
	if s.closed.Load() || data == nil {
		return
	}
	select {
	case s.OutQueue <- data:
	case <-s.closeCh:
	default:
		s.log.Warn("輸出佇列已滿，斷開慢速連線")
		s.Close()
	}
}

// SendAndClose queues a final frame, lets the writer flush everything
// before it and then closes the connection.
func (s *Session) SendAndClose(data []byte) {
	s.Send(data)
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- nil:
	default:
		s.Close()
	}
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		if s.conn != nil {
			s.conn.Close()
		}
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.closeCh }

// readLoop runs in its own goroutine. Each frame is handed to the
// dispatcher inline, so one connection is one request context.
func (s *Session) readLoop(handle MessageHandler) {
	defer s.Close()

	if s.opts.MaxMessageSize > 0 {
		s.conn.SetReadLimit(s.opts.MaxMessageSize)
	}
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})

	for {
		mt, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("讀取錯誤", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		s.extendReadDeadline()
		handle(s, payload)
	}
}

func (s *Session) extendReadDeadline() {
	if s.opts.ReadTimeout > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	}
}

// writeLoop runs in its own goroutine. It drains OutQueue to the socket and
// pings often enough to keep the peer's read deadline alive.
func (s *Session) writeLoop() {
	defer s.Close()

	pingEvery := s.opts.ReadTimeout * 9 / 10
	if pingEvery <= 0 {
		pingEvery = 30 * time.Second
	}
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	for {
		select {
		case data := <-s.OutQueue:
			if data == nil {
				s.writeControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if !s.writeOne(data) {
				return
			}
		case <-ping.C:
			if !s.writeControl(websocket.PingMessage, nil) {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeDeadline() time.Time {
	d := s.opts.WriteTimeout
	if d <= 0 {
		d = 10 * time.Second
	}
	return time.Now().Add(d)
}

// writeOne writes a single text frame. Returns true on success.
func (s *Session) writeOne(data []byte) bool {
	s.conn.SetWriteDeadline(s.writeDeadline())
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("寫入錯誤", zap.Error(err))
		}
		return false
	}
	return true
}

func (s *Session) writeControl(mt int, data []byte) bool {
	if err := s.conn.WriteControl(mt, data, s.writeDeadline()); err != nil {
		if !s.closed.Load() {
			s.log.Debug("寫入錯誤", zap.Error(err))
		}
		return false
	}
	return true
}
