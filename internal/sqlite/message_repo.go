// Package sqlite stores chat messages in a SQLite file through the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room       TEXT    NOT NULL DEFAULT 'general',
	username   TEXT    NOT NULL,
	text       TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages (room, created_at DESC, id DESC);
`

const (
	queryInsertMessage = `INSERT INTO messages (room, username, text, created_at) VALUES (?, ?, ?, ?)`
	queryRecentByRoom  = `
		SELECT id, room, username, text, created_at
		FROM messages
		WHERE room = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
)

type MessageRepository struct {
	db *sql.DB

	// writes are serialized so ids and timestamps advance together
	writeMu sync.Mutex
	clock   *domain.MonotonicClock
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// Open opens (or creates) the database file and ensures the schema.
func Open(ctx context.Context, path string) (*MessageRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &MessageRepository{
		db:    db,
		clock: domain.NewMonotonicClock(nil, time.Millisecond),
	}, nil
}

func (r *MessageRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *MessageRepository) Append(ctx context.Context, room, username, text string) (*domain.Message, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	createdAt := r.clock.Next()
	res, err := r.db.ExecContext(ctx, queryInsertMessage, room, username, text, toMillis(createdAt))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &domain.Message{
		ID:        id,
		Room:      room,
		Username:  username,
		Text:      text,
		CreatedAt: createdAt,
	}, nil
}

// Recent returns up to limit messages, newest first.
func (r *MessageRepository) Recent(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, queryRecentByRoom, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0, limit)
	for rows.Next() {
		var (
			m  domain.Message
			ms int64
		)
		if err := rows.Scan(&m.ID, &m.Room, &m.Username, &m.Text, &ms); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = fromMillis(ms)
		out = append(out, m)
	}

	return out, rows.Err()
}
