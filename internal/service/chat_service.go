package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/worker"
)

// MessageRepository is implemented by the memory, sqlite and postgres stores.
type MessageRepository interface {
	Append(ctx context.Context, room, username, text string) (*domain.Message, error)
	// Recent returns up to limit messages, newest first.
	Recent(ctx context.Context, room string, limit int) ([]domain.Message, error)
}

type ChatConfig struct {
	MaxMessageLength int // runes
	HistoryLimit     int
	MaxHistoryLimit  int
}

type ChatService struct {
	repo MessageRepository
	pool *worker.Pool
	cfg  ChatConfig
}

func NewChatService(repo MessageRepository, pool *worker.Pool, cfg ChatConfig) *ChatService {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 4000
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.MaxHistoryLimit < cfg.HistoryLimit {
		cfg.MaxHistoryLimit = cfg.HistoryLimit
	}

	return &ChatService{repo: repo, pool: pool, cfg: cfg}
}

// Append validates text and persists it on the worker pool. The returned message
// carries the store-assigned CreatedAt; store failures wrap domain.ErrPersistence.
func (s *ChatService) Append(ctx context.Context, room, username, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > s.cfg.MaxMessageLength {
		return nil, domain.ErrMessageTooLong
	}

	msg, err := worker.Do(ctx, s.pool, func(ctx context.Context) (*domain.Message, error) {
		return s.repo.Append(ctx, room, username, text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	return msg, nil
}

// Recent returns at most limit messages for room, oldest first.
// limit <= 0 selects the default; values above the maximum are capped.
func (s *ChatService) Recent(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	if limit > s.cfg.MaxHistoryLimit {
		limit = s.cfg.MaxHistoryLimit
	}

	msgs, err := s.repo.Recent(ctx, room, limit)
	if err != nil {
		return nil, fmt.Errorf("repo.Recent: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return msgs, nil
}
