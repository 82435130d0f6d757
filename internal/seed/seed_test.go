package seed

import (
	"testing"

	"forum/internal/models"
	"forum/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestDefaultFixtures(t *testing.T) {
	fx := DefaultFixtures()
	require.Len(t, fx.Users, 4)
	require.Len(t, fx.Discussions, 4)

	emails := map[string]bool{}
	for _, u := range fx.Users {
		emails[u.Email] = true
	}
	for _, d := range fx.Discussions {
		assert.True(t, emails[d.Author], "unknown author %s", d.Author)
		assert.True(t, models.IsValidCategory(d.Category), d.Category)
	}
}

func TestLoadFixtures_Idempotent(t *testing.T) {
	db := testutil.NewTestDB(t)

	res, err := LoadFixtures(db, DefaultFixtures())
	require.NoError(t, err)
	assert.Equal(t, Result{Users: 4, Discussions: 4, Comments: 4, Likes: 5}, *res)

	res, err = LoadFixtures(db, DefaultFixtures())
	require.NoError(t, err)
	assert.Equal(t, Result{}, *res)

	assert.EqualValues(t, 4, count(t, db, &models.User{}))
	assert.EqualValues(t, 4, count(t, db, &models.UserProfile{}))
	assert.EqualValues(t, 4, count(t, db, &models.Comment{}))
	assert.EqualValues(t, 5, count(t, db, &models.DiscussionLike{}))

	var ada models.User
	require.NoError(t, db.Where("email = ?", "ada@forum.local").First(&ada).Error)
	assert.True(t, ada.IsSuperuser)
	assert.True(t, ada.CheckPassword("analytical-engine"))

	var d models.Discussion
	require.NoError(t, db.Where("slug = ?", "maintaining-an-open-source-project-with-a-day-job").First(&d).Error)
	assert.Equal(t, models.CategoryOpenSource, d.Category)
}

func TestLoadFixtures_RollsBackOnError(t *testing.T) {
	db := testutil.NewTestDB(t)
	fx, err := ParseFixtures([]byte(`
users:
  - email: a@example.com
    password: secret-pw
discussions:
  - author: ghost@example.com
    title: Orphan
    content: nobody wrote this
`))
	require.NoError(t, err)

	_, err = LoadFixtures(db, fx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost@example.com")
	assert.Zero(t, count(t, db, &models.User{}))
}

func TestParseFixtures_Malformed(t *testing.T) {
	_, err := ParseFixtures([]byte("users: [unclosed"))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	db := testutil.NewTestDB(t)
	opts := Options{NumUsers: 5, NumDiscussions: 8, MaxComments: 3, LikeRatio: 0.5, MaxDays: 10, Seed: 42}

	res, err := Run(db, opts)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Users)
	assert.Equal(t, 8, res.Discussions)
	assert.EqualValues(t, res.Comments, count(t, db, &models.Comment{}))
	assert.EqualValues(t, res.Likes, count(t, db, &models.DiscussionLike{}))
	assert.EqualValues(t, 5, count(t, db, &models.UserProfile{}))

	var discussions []models.Discussion
	require.NoError(t, db.Find(&discussions).Error)
	slugs := map[string]bool{}
	for _, d := range discussions {
		assert.False(t, slugs[d.Slug], "duplicate slug %s", d.Slug)
		slugs[d.Slug] = true
		assert.True(t, models.IsValidCategory(d.Category))
		assert.LessOrEqual(t, len(d.Title), models.MaxTitleLen)
		assert.LessOrEqual(t, len(d.Tags), models.MaxTagsLen)

		var comments int64
		require.NoError(t, db.Model(&models.Comment{}).Where("discussion_id = ?", d.ID).Count(&comments).Error)
		assert.LessOrEqual(t, comments, int64(3))
	}

	var u models.User
	require.NoError(t, db.First(&u).Error)
	assert.True(t, u.CheckPassword(DefaultPassword))
}

func TestRun_NeedsUsersForDiscussions(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, err := Run(db, Options{NumDiscussions: 1})
	assert.Error(t, err)
}

func TestFactory_SuffixesDuplicateSlugs(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := NewFactory(db, Options{Seed: 1})
	u, err := f.CreateUser()
	require.NoError(t, err)

	sameTitle := func(d *models.Discussion) { d.Title = "Same title" }
	var got []string
	for i := 0; i < 3; i++ {
		d, err := f.CreateDiscussion(u, sameTitle)
		require.NoError(t, err)
		got = append(got, d.Slug)
	}
	assert.Equal(t, []string{"same-title", "same-title-1", "same-title-2"}, got)

	require.NoError(t, f.CreateLike(u, &models.Discussion{ID: 1}))
	require.NoError(t, f.CreateLike(u, &models.Discussion{ID: 1}))
	assert.EqualValues(t, 1, count(t, db, &models.DiscussionLike{}))
}

func TestClean(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, err := LoadFixtures(db, DefaultFixtures())
	require.NoError(t, err)

	require.NoError(t, Clean(db))
	for _, model := range []any{&models.User{}, &models.Discussion{}, &models.Comment{}, &models.DiscussionLike{}} {
		assert.Zero(t, count(t, db, model), "%T", model)
	}
}
