package model

import "time"

// Session ties an opaque token to a user. Sessions have no expiry; they
// live until an explicit logout deletes them.
type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
