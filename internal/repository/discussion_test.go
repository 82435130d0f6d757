package repository

import (
	"context"
	"regexp"
	"testing"

	"forum/internal/models"
	"forum/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscussionRepository_CountByUser(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDiscussionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "discussions" WHERE user_id = $1`)).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountByUser(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscussionRepository_CreateRejectsDuplicateSlug(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewDiscussionRepository(db)
	u := testutil.CreateUser(t, db, "a@x.com", "secret1", false)
	ctx := context.Background()

	d := &models.Discussion{UserID: u.ID, Title: "Hello", Slug: "hello", Content: "c", Category: models.CategoryOthers}
	require.NoError(t, repo.Create(ctx, d))
	assert.NotZero(t, d.ID)

	dup := &models.Discussion{UserID: u.ID, Title: "Hello", Slug: "hello", Content: "c", Category: models.CategoryOthers}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicateSlug)

	testutil.CreateDiscussion(t, db, u.ID, "Hello", "hello-1")
	testutil.CreateDiscussion(t, db, u.ID, "Hello world", "hello-world")
	testutil.CreateDiscussion(t, db, u.ID, "Help", "help")

	slugs, err := repo.SlugsWithPrefix(ctx, "hello")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hello", "hello-1", "hello-world"}, slugs)
}

func TestDiscussionRepository_ToggleLike(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewDiscussionRepository(db)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "a@x.com", "secret1", false)
	d := testutil.CreateDiscussion(t, db, u.ID, "T", "t")

	liked, err := repo.ToggleLike(ctx, d.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	n, err := repo.CountLikes(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	liked, err = repo.ToggleLike(ctx, d.ID, u.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	n, err = repo.CountLikes(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestDiscussionRepository_ListHydratesNewestFirst(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewDiscussionRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice@x.com", "secret1", false)
	bob := testutil.CreateUser(t, db, "bob@x.com", "secret1", false)

	first := testutil.CreateDiscussion(t, db, alice.ID, "First", "first")
	second := testutil.CreateDiscussion(t, db, bob.ID, "Second", "second")
	require.NoError(t, db.Create(&models.DiscussionLike{DiscussionID: first.ID, UserID: bob.ID}).Error)
	require.NoError(t, db.Create(&models.DiscussionLike{DiscussionID: first.ID, UserID: alice.ID}).Error)
	require.NoError(t, db.Create(&models.Comment{DiscussionID: first.ID, UserID: bob.ID, Content: "nice"}).Error)

	items, total, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, int64(0), items[0].LikesCount)
	assert.Empty(t, items[0].Comments)
	assert.Equal(t, int64(2), items[1].LikesCount)
	require.Len(t, items[1].Comments, 1)
	assert.Equal(t, "nice", items[1].Comments[0].Content)

	mine, total, err := repo.ListByUser(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.LikesCount)
	assert.Len(t, got.Comments, 1)

	_, err = repo.GetByID(ctx, 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestDiscussionRepository_UpdateAndDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewDiscussionRepository(db)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "a@x.com", "secret1", false)
	d := testutil.CreateDiscussion(t, db, u.ID, "Old", "old")
	require.NoError(t, db.Model(&models.Discussion{}).Where("id = ?", d.ID).Update("img", "discussions/1.jpg").Error)
	require.NoError(t, db.Create(&models.DiscussionLike{DiscussionID: d.ID, UserID: u.ID}).Error)
	require.NoError(t, db.Create(&models.Comment{DiscussionID: d.ID, UserID: u.ID, Content: "c"}).Error)

	require.NoError(t, repo.Update(ctx, d.ID, map[string]interface{}{"title": "New"}))
	got, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, "old", got.Slug)

	paths, err := repo.ImagePathsByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"discussions/1.jpg"}, paths)

	require.NoError(t, repo.Delete(ctx, d.ID))
	var comments, likes int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	require.NoError(t, db.Model(&models.DiscussionLike{}).Count(&likes).Error)
	assert.Zero(t, comments)
	assert.Zero(t, likes)

	assert.True(t, models.IsCode(repo.Delete(ctx, d.ID), models.CodeNotFound))
	assert.True(t, models.IsCode(repo.Update(ctx, d.ID, map[string]interface{}{"title": "x"}), models.CodeNotFound))
}
