package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"forum/internal/config"
	"forum/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "forum.db?_foreign_keys=on", sqliteDSN("forum.db"))
	assert.Equal(t, "file:x?mode=memory&_foreign_keys=on", sqliteDSN("file:x?mode=memory"))
	assert.Equal(t, "x.db?_foreign_keys=off", sqliteDSN("x.db?_foreign_keys=off"))
}

func TestDialector_RejectsUnknownDriver(t *testing.T) {
	_, err := dialector(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}

func TestConnect_SQLiteMigratesSchema(t *testing.T) {
	cfg := &config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		DBSQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	}
	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	for _, m := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
	}
	assert.NoError(t, Ping(context.Background(), db))
	assert.Nil(t, GetReadDB())
}

func TestShouldAutoMigrate(t *testing.T) {
	assert.True(t, ShouldAutoMigrate(&config.Config{Env: "development"}))
	assert.False(t, ShouldAutoMigrate(&config.Config{Env: "production"}))
	assert.True(t, ShouldAutoMigrate(&config.Config{Env: "production", DBAutoMigrate: true}))
}

func TestPersistentModels_IncludesForumTables(t *testing.T) {
	var sawDiscussion, sawLike bool
	for _, m := range PersistentModels() {
		switch m.(type) {
		case *models.Discussion:
			sawDiscussion = true
		case *models.DiscussionLike:
			sawLike = true
		}
	}
	assert.True(t, sawDiscussion)
	assert.True(t, sawLike)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: users.email")))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
