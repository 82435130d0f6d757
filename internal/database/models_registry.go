package database

import (
	"fmt"

	"forum/internal/config"
	"forum/internal/models"

	"gorm.io/gorm"
)

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserProfile{},
		&models.Discussion{},
		&models.DiscussionLike{},
		&models.Comment{},
		&models.PasswordResetToken{},
	}
}

// ShouldAutoMigrate reports whether Connect applies the schema.
// Production deployments only migrate when DB_AUTOMIGRATE is set explicitly.
func ShouldAutoMigrate(cfg *config.Config) bool {
	if cfg.IsProduction() {
		return cfg.DBAutoMigrate
	}
	return true
}

// Migrate creates or updates all tables for PersistentModels.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
