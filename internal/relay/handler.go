package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/pkg/logger"
)

type Sessions interface {
	Register(connID, username string) error
	Lookup(connID string) (string, bool)
	Forget(connID string)
}

type Rooms interface {
	Join(room, connID string)
	Leave(room, connID string)
	Purge(connID string) []string
}

type ChatSvc interface {
	Append(ctx context.Context, room, username, text string) (*domain.Message, error)
}

// Handler drives one connection's lifecycle: connect, join, leave, message, disconnect.
// Methods for a single connection are expected to be called sequentially.
type Handler struct {
	sessions  Sessions
	rooms     Rooms
	chat      ChatSvc
	disp      *Dispatcher
	guestName string
}

func NewHandler(sessions Sessions, rooms Rooms, chat ChatSvc, disp *Dispatcher, guestName string) *Handler {
	if guestName == "" {
		guestName = "Guest"
	}

	return &Handler{
		sessions:  sessions,
		rooms:     rooms,
		chat:      chat,
		disp:      disp,
		guestName: guestName,
	}
}

// OnConnect binds username (or the guest name) to conn and attaches it to the
// dispatcher. No room is joined.
func (h *Handler) OnConnect(conn Conn, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		username = h.guestName
	}
	if err := h.sessions.Register(conn.ID(), username); err != nil {
		return fmt.Errorf("session.Register: %w", err)
	}
	h.disp.Attach(conn)

	slog.Debug("relay.connect", "conn_id", conn.ID(), "user", username)
	return nil
}

func (h *Handler) OnJoin(ctx context.Context, connID, room string) error {
	user, ok := h.sessions.Lookup(connID)
	if !ok {
		return domain.ErrUnauthenticated
	}
	h.rooms.Join(room, connID)

	n, err := h.disp.Emit(ctx, room, SystemEvent{Text: user + " joined " + room})
	if err != nil {
		return err
	}
	slog.Debug("relay.join", append(logger.Args(ctx), "room", room, "user", user, "delivered", n)...)

	return nil
}

func (h *Handler) OnLeave(ctx context.Context, connID, room string) error {
	user, ok := h.sessions.Lookup(connID)
	if !ok {
		return domain.ErrUnauthenticated
	}
	h.rooms.Leave(room, connID)

	n, err := h.disp.Emit(ctx, room, SystemEvent{Text: user + " left " + room})
	if err != nil {
		return err
	}
	slog.Debug("relay.leave", append(logger.Args(ctx), "room", room, "user", user, "delivered", n)...)

	return nil
}

// OnMessage persists text and, only once the store has accepted it, broadcasts
// it to room with the stored timestamp.
func (h *Handler) OnMessage(ctx context.Context, connID, room, text string) (*domain.Message, error) {
	user, ok := h.sessions.Lookup(connID)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	msg, err := h.chat.Append(ctx, room, user, text)
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			slog.Error("relay.message not persisted", append(logger.Args(ctx), "room", room, "user", user, "err", err)...)
		}
		return nil, err
	}

	if _, err := h.disp.Emit(ctx, room, MessageEvent{
		Username:  msg.Username,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}); err != nil {
		return msg, err
	}

	return msg, nil
}

// OnDisconnect is terminal: later events for connID report ErrUnauthenticated.
func (h *Handler) OnDisconnect(connID string) []string {
	h.sessions.Forget(connID)
	left := h.rooms.Purge(connID)
	h.disp.Detach(connID)

	slog.Debug("relay.disconnect", "conn_id", connID, "rooms", left)
	return left
}

// Handle dispatches a decoded inbound command.
func (h *Handler) Handle(ctx context.Context, connID string, cmd Command) error {
	switch c := cmd.(type) {
	case JoinCommand:
		return h.OnJoin(ctx, connID, c.Room)
	case LeaveCommand:
		return h.OnLeave(ctx, connID, c.Room)
	case SendCommand:
		_, err := h.OnMessage(ctx, connID, c.Room, c.Text)
		return err
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}
