// Package memory is an in-process message store, used by tests and the "memory" driver.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/domain"
)

type MessageRepository struct {
	mu     sync.RWMutex
	nextID int64
	rooms  map[string][]domain.Message
	clock  *domain.MonotonicClock
}

func NewMessageRepository(now func() time.Time) *MessageRepository {
	return &MessageRepository{
		rooms: make(map[string][]domain.Message),
		clock: domain.NewMonotonicClock(now, time.Microsecond),
	}
}

func (r *MessageRepository) Append(ctx context.Context, room, username, text string) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	m := domain.Message{
		ID:        r.nextID,
		Room:      room,
		Username:  username,
		Text:      text,
		CreatedAt: r.clock.Next(),
	}
	r.rooms[room] = append(r.rooms[room], m)

	return &m, nil
}

// Recent returns up to limit messages, newest first.
func (r *MessageRepository) Recent(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.rooms[room]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]domain.Message, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}

	return out, nil
}
