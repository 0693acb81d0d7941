package db

import (
	"crypto/rand"
	"encoding/hex"
	"log"

	"github.com/glebarez/sqlite"
	"github.com/pysugar/digital-twin/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the SQLite database connection and runs migrations.
func InitDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate all models
	if err := db.AutoMigrate(&models.User{}, &models.Connection{}, &models.Config{}); err != nil {
		return nil, err
	}

	// Ensure session signing secret exists (generate on first run)
	ensureSessionSecret(db)

	return db, nil
}

// ensureSessionSecret generates the session signing secret if not exists
func ensureSessionSecret(db *gorm.DB) {
	var config models.Config
	result := db.Where("key = ?", "session_secret").First(&config)

	if result.Error != nil {
		secretBytes := make([]byte, 32)
		rand.Read(secretBytes)
		secret := hex.EncodeToString(secretBytes)

		db.Create(&models.Config{
			Key:   "session_secret",
			Value: secret,
		})
		log.Printf("🔑 Generated new session signing secret")
	}
}

// GetSessionSecret retrieves the session signing secret from database
func GetSessionSecret(db *gorm.DB) string {
	var config models.Config
	db.Where("key = ?", "session_secret").First(&config)
	return config.Value
}
