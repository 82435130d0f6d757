// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"

	"forum/internal/database"
	"forum/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Uint64

// NewTestDB returns a migrated in-memory SQLite database private to t.
// The pool is pinned to one connection so every query sees the same memory database.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a user with a profile and the given raw password.
func CreateUser(t testing.TB, db *gorm.DB, email, password string, superuser bool) *models.User {
	t.Helper()
	u := &models.User{
		Email:       models.NormalizeEmail(email),
		FirstName:   strings.Split(email, "@")[0],
		IsActive:    true,
		IsSuperuser: superuser,
		IsStaff:     superuser,
	}
	require.NoError(t, u.SetPassword(password))
	require.NoError(t, db.Create(u).Error)
	require.NoError(t, db.Create(&models.UserProfile{UserID: u.ID}).Error)
	return u
}

// CreateDiscussion inserts a discussion owned by userID.
func CreateDiscussion(t testing.TB, db *gorm.DB, userID uint, title, slug string) *models.Discussion {
	t.Helper()
	d := &models.Discussion{
		UserID:   userID,
		Title:    title,
		Slug:     slug,
		Content:  "content of " + title,
		Category: models.CategoryOthers,
	}
	require.NoError(t, db.Create(d).Error)
	return d
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
