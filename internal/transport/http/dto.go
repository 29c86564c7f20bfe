package http

import "time"

type MessageItem struct {
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Messages []MessageItem `json:"messages"`
}

type RoomsResponse struct {
	Suggested   []string `json:"suggested"`
	ActiveRooms int      `json:"active_rooms"`
	Sessions    int      `json:"sessions"`
}
