package domain

import (
	"strings"
	"time"
)

type User struct {
	ID           string
	Email        string // lowercased; the login identifier
	Username     string // lowercased
	FirstName    string
	LastName     string
	PasswordHash string // argon2id PHC string
	Role         Role
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName is "first last", or the email when both are blank.
func (u User) FullName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Email
}

// ShortName is the first name, or the email when it is blank.
func (u User) ShortName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}

// NormalizeEmail lowercases and trims an email address so lookups and the
// unique index agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
