package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"forum/internal/models"
	"forum/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		expectedCode string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(1, "a@x.com"))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "user_profiles" WHERE "user_profiles"."user_id" = $1`)).
					WithArgs(1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow(3, 1))
			},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedCode: models.CodeNotFound,
		},
		{
			name:   "Driver failure",
			userID: 5,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(5, 1).
					WillReturnError(errors.New("connection reset"))
			},
			expectedCode: models.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedCode != "" {
				assert.True(t, models.IsCode(err, tt.expectedCode), "got %v", err)
			} else if assert.NoError(t, err) {
				assert.Equal(t, "a@x.com", user.Email)
				require.NotNil(t, user.Profile)
				assert.Equal(t, uint(3), user.Profile.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateAddsProfileAndRejectsDuplicates(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := &models.User{Email: "a@x.com", Password: "hash", IsActive: true}
	require.NoError(t, repo.Create(ctx, u))
	require.NotNil(t, u.Profile)
	assert.Equal(t, u.ID, u.Profile.UserID)

	err := repo.Create(ctx, &models.User{Email: "a@x.com", Password: "hash", IsActive: true})
	assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)

	var profiles int64
	require.NoError(t, db.Model(&models.UserProfile{}).Count(&profiles).Error)
	assert.Equal(t, int64(1), profiles)
}

func TestUserRepository_UpdateFieldsAndPassword(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "b@x.com", "secret1", false)

	require.NoError(t, repo.UpdateFields(ctx, u.ID, map[string]interface{}{"first_name": "Bea"}))
	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "new-hash"))
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.TouchLastLogin(ctx, u.ID, now))

	got, err := repo.GetByEmail(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Bea", got.FirstName)
	assert.Equal(t, "new-hash", got.Password)
	require.NotNil(t, got.LastLogin)

	err = repo.UpdateFields(ctx, 9999, map[string]interface{}{"first_name": "x"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_ListPaginates(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		testutil.CreateUser(t, db, email, "secret1", false)
	}

	users, total, err := repo.List(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, users, 2)
	assert.Equal(t, "b@x.com", users[0].Email)
	assert.NotNil(t, users[0].Profile)
}

func TestUserRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner@x.com", "secret1", false)
	other := testutil.CreateUser(t, db, "other@x.com", "secret1", false)
	mine := testutil.CreateDiscussion(t, db, owner.ID, "Mine", "mine")
	theirs := testutil.CreateDiscussion(t, db, other.ID, "Theirs", "theirs")

	require.NoError(t, db.Create(&models.DiscussionLike{DiscussionID: mine.ID, UserID: other.ID}).Error)
	require.NoError(t, db.Create(&models.DiscussionLike{DiscussionID: theirs.ID, UserID: owner.ID}).Error)
	require.NoError(t, db.Create(&models.Comment{DiscussionID: mine.ID, UserID: other.ID, Content: "hi"}).Error)
	require.NoError(t, db.Create(&models.Comment{DiscussionID: theirs.ID, UserID: owner.ID, Content: "yo"}).Error)
	require.NoError(t, db.Create(&models.PasswordResetToken{UserID: owner.ID, Key: "k1"}).Error)

	require.NoError(t, repo.Delete(ctx, owner.ID))

	count := func(model interface{}) int64 {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		return n
	}
	assert.Equal(t, int64(1), count(&models.User{}))
	assert.Equal(t, int64(1), count(&models.UserProfile{}))
	assert.Equal(t, int64(1), count(&models.Discussion{}))
	assert.Equal(t, int64(0), count(&models.DiscussionLike{}))
	assert.Equal(t, int64(0), count(&models.Comment{}))
	assert.Equal(t, int64(0), count(&models.PasswordResetToken{}))

	err := repo.Delete(ctx, owner.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
