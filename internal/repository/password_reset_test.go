package repository

import (
	"context"
	"testing"
	"time"

	"forum/internal/models"
	"forum/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordResetRepository_Lifecycle(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPasswordResetRepository(db)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "a@x.com", "secret1", false)

	latest, err := repo.LatestForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	old := &models.PasswordResetToken{UserID: u.ID, Key: "old-key", CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &models.PasswordResetToken{UserID: u.ID, Key: "fresh-key", IPAddress: "10.0.0.1"}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, fresh))

	latest, err = repo.LatestForUser(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "fresh-key", latest.Key)

	got, err := repo.GetByKey(ctx, "fresh-key")
	require.NoError(t, err)
	require.NotNil(t, got.User)
	assert.Equal(t, "a@x.com", got.User.Email)

	removed, err := repo.DeleteCreatedBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	require.NoError(t, repo.DeleteForUser(ctx, u.ID))
	_, err = repo.GetByKey(ctx, "fresh-key")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestProfileRepository_Ensure(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	u := &models.User{Email: "np@x.com", Password: "h", IsActive: true}
	require.NoError(t, db.Create(u).Error)

	_, err := repo.GetByUserID(ctx, u.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	p, err := repo.Ensure(ctx, u.ID)
	require.NoError(t, err)
	again, err := repo.Ensure(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
}
