package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pipeworks-za/backend/pkg/models"
)

// Connect opens the Postgres connection and runs schema migration
func Connect(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("✅ Database connected and migrated")
	return db, nil
}

// Migrate applies the schema for all persisted entities
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Lead{},
		&models.Conversation{},
		&models.Message{},
		&models.DailyStats{},
		&models.AIUsageStats{},
		&models.Visit{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
