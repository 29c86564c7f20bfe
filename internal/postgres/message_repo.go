// Package postgres stores chat messages in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrConstraint = errors.New("postgres: constraint violation")

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Append(ctx context.Context, room, username, text string) (*domain.Message, error) {
	var m domain.Message
	err := r.db.QueryRow(ctx, queryInsertMessage, room, username, text).
		Scan(&m.ID, &m.Room, &m.Username, &m.Text, &m.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	m.CreatedAt = m.CreatedAt.UTC()

	return &m, nil
}

// Recent returns up to limit messages, newest first.
func (r *MessageRepository) Recent(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, queryRecentMessages, room, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0, limit)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.Room, &m.Username, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}

	return out, rows.Err()
}

func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 23: integrity constraint violation
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
			return fmt.Errorf("%w: %s", ErrConstraint, pgErr.Message)
		}
	}

	return err
}
