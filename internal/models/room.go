package models

import "time"

// Participant is a room member with the display name captured at join time.
type Participant struct {
	UserID   int    `db:"user_id" json:"user_id"`
	Username string `db:"username" json:"username"`
}

// Room is a chat room identified by its participant set.
type Room struct {
	ID           int           `db:"id" json:"id"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether the user belongs to the room.
func (r Room) HasParticipant(userID int) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
