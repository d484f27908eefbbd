package database

import (
	"fmt"

	"reflexion/internal/models"
	"reflexion/internal/observability"

	"gorm.io/gorm"
)

// Models lists every table owned by the relational store, parents first.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Like{},
		&models.Connection{},
		&models.ConnectionReveal{},
		&models.Message{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	observability.GlobalLogger.Info("Database migration completed")
	return nil
}
