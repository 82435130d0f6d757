package seed

import (
	"fmt"
	"strings"
	"time"

	"forum/internal/models"
	"forum/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the raw password of every generated account.
const DefaultPassword = "password123"

// Factory builds fake forum entities and persists them.
// It is used by Run and by tests that need bulk data.
type Factory struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	opts  Options
	seq   int
	// bcrypt is slow; every generated account shares one hash.
	passwordHash string
}

// NewFactory creates a Factory bound to db. A zero opts.Seed picks a random seed.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	return &Factory{db: db, faker: gofakeit.New(opts.Seed), opts: opts}
}

func (f *Factory) hash() (string, error) {
	if f.passwordHash == "" {
		var scratch models.User
		if err := scratch.SetPassword(DefaultPassword); err != nil {
			return "", err
		}
		f.passwordHash = scratch.Password
	}
	return f.passwordHash, nil
}

// createdAt spreads timestamps over the last opts.MaxDays days.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}

// CreateUser persists a regular account with a profile. Overrides run before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.hash()
	if err != nil {
		return nil, err
	}
	f.seq++
	first := f.faker.FirstName()
	last := f.faker.LastName()
	user := &models.User{
		Email:      fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), f.seq),
		Username:   fmt.Sprintf("%s%d", strings.ToLower(first), f.faker.Number(100, 999)),
		FirstName:  first,
		LastName:   last,
		Password:   hash,
		IsActive:   true,
		IsVerified: f.faker.Bool(),
		Profile:    &models.UserProfile{},
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateDiscussion persists a discussion authored by user with a fresh unique slug.
func (f *Factory) CreateDiscussion(user *models.User, overrides ...func(*models.Discussion)) (*models.Discussion, error) {
	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 9)), ".")
	if len(title) > models.MaxTitleLen {
		title = strings.TrimSpace(title[:models.MaxTitleLen])
	}
	d := &models.Discussion{
		UserID:    user.ID,
		Title:     title,
		Content:   f.faker.Paragraph(1, 3, 12, "\n\n"),
		Category:  f.faker.RandomString(models.Categories),
		Tags:      f.tags(),
		CreatedAt: f.createdAt(),
	}
	for _, override := range overrides {
		override(d)
	}
	if d.Slug == "" {
		s, err := f.freeSlug(d.Title)
		if err != nil {
			return nil, err
		}
		d.Slug = s
	}
	if err := f.db.Omit(clause.Associations).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

func (f *Factory) tags() string {
	n := f.faker.Number(0, 3)
	tags := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tags = append(tags, strings.ToLower(f.faker.Word()))
	}
	out := strings.Join(tags, ",")
	if len(out) > models.MaxTagsLen {
		out = out[:models.MaxTagsLen]
	}
	return out
}

func (f *Factory) freeSlug(title string) (string, error) {
	base := service.SlugifyTitle(title)
	var taken []string
	if err := f.db.Model(&models.Discussion{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &taken).Error; err != nil {
		return "", err
	}
	used := make(map[string]struct{}, len(taken))
	for _, s := range taken {
		used[s] = struct{}{}
	}
	candidate := base
	for n := 1; ; n++ {
		if _, ok := used[candidate]; !ok {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

// CreateComment persists user's comment on d.
func (f *Factory) CreateComment(user *models.User, d *models.Discussion, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		UserID:       user.ID,
		DiscussionID: d.ID,
		Content:      f.faker.Sentence(f.faker.Number(4, 16)),
	}
	for _, override := range overrides {
		override(comment)
	}
	if err := f.db.Omit(clause.Associations).Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike records that user likes d. Repeating it is a no-op.
func (f *Factory) CreateLike(user *models.User, d *models.Discussion) error {
	_, err := insertLike(f.db, user.ID, d.ID)
	return err
}
