package domain

import "time"

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is what the server remembers about a logged in browser.
type Session struct {
	Token    string `json:"-"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}
