package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	httpmw "github.com/cwrk-planet/chat-relay/internal/transport/http/middleware"
	"github.com/cwrk-planet/chat-relay/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

type HistorySvc interface {
	Recent(ctx context.Context, room string, limit int) ([]domain.Message, error)
}

type RoomCounter interface {
	RoomCount() int
}

type SessionCounter interface {
	Len() int
}

type Handler struct {
	chat      HistorySvc
	rooms     RoomCounter
	sessions  SessionCounter
	suggested []string
}

func NewHandler(chat HistorySvc, rooms RoomCounter, sessions SessionCounter, suggested []string) *Handler {
	return &Handler{
		chat:      chat,
		rooms:     rooms,
		sessions:  sessions,
		suggested: suggested,
	}
}

// GET /history/{room}?limit=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			httputil.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	msgs, err := h.chat.Recent(r.Context(), room, limit)
	if err != nil {
		slog.Error("handler.History", "room", room, "user", httpmw.UsernameFromCtx(r.Context()), "err", err)
		httputil.Error(w, http.StatusInternalServerError, "history unavailable")
		return
	}

	resp := HistoryResponse{Messages: make([]MessageItem, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, MessageItem{
			Username:  m.Username,
			Text:      m.Text,
			CreatedAt: m.CreatedAt.UTC(),
		})
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// GET /rooms
func (h *Handler) Rooms(w http.ResponseWriter, r *http.Request) {
	suggested := h.suggested
	if suggested == nil {
		suggested = []string{}
	}

	httputil.JSON(w, http.StatusOK, RoomsResponse{
		Suggested:   suggested,
		ActiveRooms: h.rooms.RoomCount(),
		Sessions:    h.sessions.Len(),
	})
}
