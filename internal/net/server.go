package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server accepts websocket connections on /ws and creates Sessions.
// New/dead sessions are communicated to the game loop via channels.
type Server struct {
	listener net.Listener
	http     *http.Server
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	nextID   atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64 // session IDs of dead sessions

	mu       sync.RWMutex
	sessions map[uint64]*Session

	opts    SessionOptions
	handle  MessageHandler
	log     *zap.Logger
	closeCh chan struct{}
}

func NewServer(bindAddr string, opts SessionOptions, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: ln,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients on any origin; no auth in this server.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 64),
		sessions: make(map[uint64]*Session),
		opts:     opts,
		log:      log,
		closeCh:  make(chan struct{}),
	}
	s.mux.HandleFunc("/ws", s.serveWS)
	s.http = &http.Server{Handler: s.mux}
	return s, nil
}

// SetMessageHandler installs the dispatcher. Must be called before AcceptLoop.
func (s *Server) SetMessageHandler(h MessageHandler) { s.handle = h }

// Handle mounts an extra HTTP endpoint next to /ws.
func (s *Server) Handle(pattern string, h http.Handler) { s.mux.Handle(pattern, h) }

// AcceptLoop serves HTTP until Shutdown. Run it in its own goroutine.
func (s *Server) AcceptLoop() {
	if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("連線接受失敗", zap.Error(err))
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.closeCh:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket 升級失敗", zap.Error(err))
		return
	}

	id := s.nextID.Add(1)
	sess := NewSession(conn, id, s.opts, s.log)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	handle := s.handle
	if handle == nil {
		handle = func(*Session, []byte) {}
	}
	sess.Start(handle, s.sessionClosed)

	s.log.Info(fmt.Sprintf("玩家連線  session=%d  ip=%s", id, sess.IP))

	select {
	case s.newConns <- sess:
	default:
		s.log.Warn("連線佇列已滿，拒絕新連線")
		sess.Close()
	}
}

func (s *Server) sessionClosed(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	s.NotifyDead(sess.ID)
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session ID to the game loop. Never blocks the
// caller: Close can run on the tick goroutine itself.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
		go func() {
			select {
			case s.deadCh <- sessionID:
			case <-s.closeCh:
			}
		}()
	}
}

// DeadSessions returns the channel of dead session IDs.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Session returns a live session by id, or nil.
func (s *Server) Session(id uint64) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// SendTo queues data on one session. Returns false if it is gone.
func (s *Server) SendTo(sessionID uint64, data []byte) bool {
	sess := s.Session(sessionID)
	if sess == nil || sess.IsClosed() {
		return false
	}
	sess.Send(data)
	return true
}

// SessionIDs returns every live session id in ascending order.
func (s *Server) SessionIDs() []uint64 {
	s.mu.RLock()
	ids := make([]uint64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown stops accepting new connections and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.closeCh:
		return nil
	default:
	}
	close(s.closeCh)
	err := s.http.Shutdown(ctx)

	s.mu.RLock()
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.RUnlock()
	for _, sess := range live {
		sess.Close()
	}
	return err
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
