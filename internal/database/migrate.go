package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/forkcast/backend/internal/model"
)

// Migrate applies the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector;").Error; err != nil {
			return fmt.Errorf("failed to install pgvector extension: %w", err)
		}
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.CreditAccount{},
		&model.Recipe{},
	); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}
