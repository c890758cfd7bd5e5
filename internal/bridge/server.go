// Package bridge carries the dapp protocol over websocket. Each connection
// feeds inbound messages to the router; responses come back on the
// dispatcher goroutine and are written under a per-connection write lock so
// frames never interleave.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
	"github.com/keeperstack/wallet_bridge/internal/app/router"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
	maxFrameSize = 1 << 20
)

// Server upgrades HTTP requests to protocol sessions.
type Server struct {
	router   *router.Router
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewServer constructs a bridge server.
func NewServer(rtr *router.Router, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("bridge")
	}
	return &Server{
		router: rtr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin validation happens at the protocol layer against the
			// stored session, not at the transport.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeHTTP upgrades the connection and runs the session until the peer
// disconnects. Tearing down the connection cancels every pipeline it
// started.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sess := &session{
		conn:   conn,
		router: s.router,
		log:    s.log.WithField("remote", conn.RemoteAddr().String()),
	}
	sess.run(r.Context())
}

type session struct {
	conn   *websocket.Conn
	router *router.Router
	log    *logger.Logger

	writeMu sync.Mutex
}

func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer s.conn.Close()

	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go s.pingLoop(pingDone)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Debug("websocket closed")
			}
			return
		}

		var req router.Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.log.WithError(err).Debug("discarding undecodable frame")
			s.write(router.Response{Error: &router.ErrorBody{
				Code:    connect.CodeBadRequest,
				Message: "malformed message",
			}})
			continue
		}
		s.router.Route(ctx, req, s.write)
	}
}

func (s *session) write(resp router.Response) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(resp); err != nil {
		s.log.WithError(err).Debug("dropping response for dead connection")
	}
}

func (s *session) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
