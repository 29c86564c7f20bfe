package postgres

const (
	querySchema = `
		CREATE TABLE IF NOT EXISTS room_messages (
			id         BIGSERIAL   PRIMARY KEY,
			room       TEXT        NOT NULL DEFAULT 'general',
			username   TEXT        NOT NULL,
			text       TEXT        NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
		);
		CREATE INDEX IF NOT EXISTS idx_room_messages_room_id
			ON room_messages (room, id DESC);
	`

	queryInsertMessage = `
		INSERT INTO room_messages (room, username, text, created_at)
		VALUES ($1, $2, $3, clock_timestamp())
		RETURNING id, room, username, text, created_at
	`

	// id is the insertion order; created_at of concurrent inserts may interleave by a few µs.
	queryRecentMessages = `
		SELECT id, room, username, text, created_at
		FROM room_messages
		WHERE room = $1
		ORDER BY id DESC
		LIMIT $2
	`
)
