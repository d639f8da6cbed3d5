package models

import "time"

// Message is an immutable room message.
type Message struct {
	ID        int       `db:"id" json:"id"`
	RoomID    int       `db:"room_id" json:"room_id"`
	SenderID  int       `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MessageView is a message enriched with the sender display name.
type MessageView struct {
	Message
	SenderUsername string `json:"sender_username,omitempty"`
}
