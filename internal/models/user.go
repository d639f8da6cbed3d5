package models

import "time"

// User is a registered account. The password hash never leaves the server.
type User struct {
	ID           int       `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Identity is the authenticated view of a user carried by sessions and tokens.
type Identity struct {
	UserID   int    `json:"id"`
	Username string `json:"username"`
}
