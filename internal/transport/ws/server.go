// Package ws is the websocket transport: it upgrades GET /ws, runs a read and
// a write loop per connection and feeds decoded frames to the relay handler.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/auth"
	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/relay"
	"github.com/cwrk-planet/chat-relay/pkg/httputil"
	"github.com/cwrk-planet/chat-relay/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Resolver interface {
	Resolve(r *http.Request) (auth.Identity, error)
}

type Config struct {
	PingInterval          time.Duration
	WriteTimeout          time.Duration
	ReadLimit             int64
	SendBuffer            int
	AllowedOrigins        []string
	DefaultRoom           string
	NotifyUnauthenticated bool
}

type Server struct {
	upgrader websocket.Upgrader
	handler  *relay.Handler
	disp     *relay.Dispatcher
	resolver Resolver
	cfg      Config

	mu    sync.Mutex
	conns map[string]*wsConn
}

func NewServer(handler *relay.Handler, disp *relay.Dispatcher, resolver Resolver, cfg Config) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 64 << 10
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.DefaultRoom == "" {
		cfg.DefaultRoom = "general"
	}

	return &Server{
		handler:  handler,
		disp:     disp,
		resolver: resolver,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     newOriginPolicy(cfg.AllowedOrigins).check,
		},
		conns: make(map[string]*wsConn),
	}
}

// HandleWS serves GET /ws?access_token=... (or ?username=... when trusted).
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	id, err := s.resolver.Resolve(r)
	if err != nil {
		slog.Info("ws.auth rejected", "remote", r.RemoteAddr, "err", err)
		if errors.Is(err, auth.ErrInactiveUser) {
			httputil.Error(w, http.StatusForbidden, "inactive user")
			return
		}
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		slog.Warn("ws.upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, uuid.NewString(), id.Username, s.cfg.SendBuffer)
	if err := s.handler.OnConnect(c, id.Username); err != nil {
		slog.Error("ws.connect failed", "conn_id", c.id, "err", err)
		c.closeWith(websocket.CloseInternalServerErr, "connect failed")
		return
	}
	s.track(c)
	ctx := logger.WithConnID(r.Context(), c.id)
	slog.Info("ws.connected", append(logger.Args(ctx), "user", id.Username, "authenticated", id.Authenticated)...)

	go s.writeLoop(c)
	s.readLoop(ctx, c)

	// the read loop is sequential, so any append it started has completed
	rooms := s.handler.OnDisconnect(c.id)
	s.untrack(c)
	_ = c.Close()
	slog.Info("ws.disconnected", append(logger.Args(ctx), "user", id.Username, "rooms", rooms)...)
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(s.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("ws.read closed", append(logger.Args(ctx), "err", err)...)
			}
			return
		}

		cmd, err := relay.DecodeCommand(data, s.cfg.DefaultRoom)
		if err != nil {
			s.notify(ctx, c, relay.CodeMalformed, err.Error())
			continue
		}
		s.report(ctx, c, s.handler.Handle(ctx, c.id, cmd))
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("ws.write failed", "conn_id", c.id, "err", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// report maps handler errors to error events for the sender.
func (s *Server) report(ctx context.Context, c *wsConn, err error) {
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnauthenticated):
		if s.cfg.NotifyUnauthenticated {
			s.notify(ctx, c, relay.CodeUnauthenticated, "no session for this connection")
		}
	case errors.Is(err, domain.ErrEmptyMessage):
		// dropped silently
	case errors.Is(err, domain.ErrMessageTooLong):
		s.notify(ctx, c, relay.CodeTooLong, "message too long")
	case errors.Is(err, domain.ErrPersistence):
		s.notify(ctx, c, relay.CodePersistence, "message could not be saved")
	default:
		slog.Warn("ws.handle failed", append(logger.Args(ctx), "err", err)...)
	}
}

func (s *Server) notify(ctx context.Context, c *wsConn, code, text string) {
	if err := s.disp.SendTo(c.id, relay.ErrorEvent{Code: code, Text: text}); err != nil {
		slog.Debug("ws.notify failed", append(logger.Args(ctx), "code", code, "err", err)...)
	}
}

func (s *Server) track(c *wsConn) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
}

// Shutdown sends a going-away close frame to every live connection. Their
// handlers then run the usual disconnect path.
func (s *Server) Shutdown() {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
	slog.Info("ws.shutdown", "closed", len(conns))
}

// Len is the number of live websocket connections.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
