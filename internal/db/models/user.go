package models

import "time"

// User is an account created on first OAuth sign-in. A user owns zero or
// more provider connections and nothing else; delete the connections and
// the user record has no reason to exist.
type User struct {
	ID        string `gorm:"primaryKey"` // UUID
	Name      string
	Picture   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
