package domain

import "time"

// Session binds a browser (through the raw cookie token, which is never
// stored) to a user until ExpiresAt.
type Session struct {
	ID        string
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
