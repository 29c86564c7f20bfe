package domain

import "time"

type Message struct {
	ID        int64     `db:"id"`
	Room      string    `db:"room"`
	Username  string    `db:"username"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
}
