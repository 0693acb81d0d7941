package models

import "time"

// Config stores generated application state like the session signing secret
type Config struct {
	Key       string `gorm:"primaryKey"` // Config key name
	Value     string // Config value
	CreatedAt time.Time
	UpdatedAt time.Time
}
