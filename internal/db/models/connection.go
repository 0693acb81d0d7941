package models

import "time"

// Connection binds a user to one provider's OAuth grant. The unique
// composite index enforces at most one row per (user, provider); a second
// authorization for the same pair updates the row in place.
//
// AccessToken and RefreshToken are ciphertext blobs (AES-GCM, base64).
// They are decrypted only inside the credential manager and never leave
// the process through any read API.
type Connection struct {
	ID             string `gorm:"primaryKey"` // UUID
	UserID         string `gorm:"uniqueIndex:idx_user_provider"`
	Provider       string `gorm:"uniqueIndex:idx_user_provider"` // "google", "notion"
	ProviderUserID string
	AccessToken    string
	RefreshToken   string     // empty for providers that issue long-lived tokens
	ExpiresAt      *time.Time // nil = non-expiring
	Scopes         string     // JSON array of granted scopes
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
