// Package store is the durable token store: an encrypted-at-rest mapping
// from (user, provider) to credential material. Token fields pass through
// the security cipher on every write and read; the database only ever
// holds ciphertext.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pysugar/digital-twin/internal/db/models"
	"github.com/pysugar/digital-twin/internal/security"
	"gorm.io/gorm"
)

// ErrNotFound reports that no connection exists for a (user, provider) pair.
var ErrNotFound = errors.New("connection not found")

// StorageError wraps database or cipher failures. These are fatal for the
// request that hit them: credential state cannot be trusted after one.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("token store %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Material is decrypted token material plus grant metadata. It exists in
// memory only; callers must not log or persist it.
type Material struct {
	AccessToken    string
	RefreshToken   string     // empty when the provider issues no refresh token
	ExpiresAt      *time.Time // nil = non-expiring
	Scopes         []string
	ProviderUserID string
}

// Store persists connections through the cipher boundary.
type Store struct {
	db     *gorm.DB
	cipher *security.Cipher
}

// New creates a Store over the given database and cipher.
func New(db *gorm.DB, cipher *security.Cipher) *Store {
	return &Store{db: db, cipher: cipher}
}

// Put upserts the connection for (userID, provider). The replace happens
// inside one transaction so readers never observe a partial write.
func (s *Store) Put(ctx context.Context, userID, provider string, m Material) error {
	access, err := s.cipher.Encrypt(m.AccessToken)
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}
	refresh, err := s.cipher.Encrypt(m.RefreshToken)
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}
	scopes, err := json.Marshal(m.Scopes)
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conn models.Connection
		found := tx.Where("user_id = ? AND provider = ?", userID, provider).First(&conn).Error
		if found != nil && !errors.Is(found, gorm.ErrRecordNotFound) {
			return found
		}

		if errors.Is(found, gorm.ErrRecordNotFound) {
			conn = models.Connection{
				ID:       uuid.New().String(),
				UserID:   userID,
				Provider: provider,
			}
		}
		conn.AccessToken = access
		// A rotation-less refresh keeps the stored refresh token.
		if m.RefreshToken != "" || conn.RefreshToken == "" {
			conn.RefreshToken = refresh
		}
		conn.ExpiresAt = m.ExpiresAt
		conn.Scopes = string(scopes)
		if m.ProviderUserID != "" {
			conn.ProviderUserID = m.ProviderUserID
		}
		return tx.Save(&conn).Error
	})
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}
	return nil
}

// Get returns the decrypted material for (userID, provider), or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID, provider string) (Material, error) {
	var conn models.Connection
	err := s.db.WithContext(ctx).Where("user_id = ? AND provider = ?", userID, provider).First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Material{}, ErrNotFound
	}
	if err != nil {
		return Material{}, &StorageError{Op: "get", Err: err}
	}

	access, err := s.cipher.Decrypt(conn.AccessToken)
	if err != nil {
		return Material{}, &StorageError{Op: "get", Err: err}
	}
	refresh, err := s.cipher.Decrypt(conn.RefreshToken)
	if err != nil {
		return Material{}, &StorageError{Op: "get", Err: err}
	}

	var scopes []string
	if conn.Scopes != "" {
		// Scopes are informational; a malformed blob should not block token use.
		_ = json.Unmarshal([]byte(conn.Scopes), &scopes)
	}

	return Material{
		AccessToken:    access,
		RefreshToken:   refresh,
		ExpiresAt:      conn.ExpiresAt,
		Scopes:         scopes,
		ProviderUserID: conn.ProviderUserID,
	}, nil
}

// Delete removes the connection for (userID, provider). Deleting a pair
// that does not exist is a no-op, not an error.
func (s *Store) Delete(ctx context.Context, userID, provider string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&models.Connection{}).Error
	if err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	return nil
}

// Providers lists the providers the user currently has connections for.
func (s *Store) Providers(ctx context.Context, userID string) ([]string, error) {
	var providers []string
	err := s.db.WithContext(ctx).
		Model(&models.Connection{}).
		Where("user_id = ?", userID).
		Order("provider").
		Pluck("provider", &providers).Error
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return providers, nil
}
