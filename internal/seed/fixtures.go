package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"forum/internal/models"
	"forum/internal/service"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed fixtures.yml
var defaultFixtures []byte

// Fixtures is a hand-written data set: accounts plus discussions referencing them by email.
type Fixtures struct {
	Users       []UserFixture       `yaml:"users"`
	Discussions []DiscussionFixture `yaml:"discussions"`
}

// UserFixture describes one account.
type UserFixture struct {
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Username  string `yaml:"username"`
	Superuser bool   `yaml:"superuser"`
}

// DiscussionFixture describes a discussion with its comments and likes.
type DiscussionFixture struct {
	Author   string           `yaml:"author"`
	Title    string           `yaml:"title"`
	Content  string           `yaml:"content"`
	Category string           `yaml:"category"`
	Tags     string           `yaml:"tags"`
	Comments []CommentFixture `yaml:"comments"`
	LikedBy  []string         `yaml:"liked_by"`
}

// CommentFixture is a comment by Author.
type CommentFixture struct {
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
}

// ParseFixtures decodes a YAML fixture document.
func ParseFixtures(raw []byte) (*Fixtures, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &fx, nil
}

// DefaultFixtures returns the bundled demo data set.
func DefaultFixtures() *Fixtures {
	fx, err := ParseFixtures(defaultFixtures)
	if err != nil {
		panic(err)
	}
	return fx
}

// LoadFixtures writes fx in a single transaction. Rows that already exist
// (users by email, discussions by slug, comments and likes by user and discussion)
// are reused, so loading the same fixtures twice is a no-op.
func LoadFixtures(db *gorm.DB, fx *Fixtures) (*Result, error) {
	res := &Result{}
	err := db.Transaction(func(tx *gorm.DB) error {
		users := make(map[string]*models.User, len(fx.Users))
		for _, uf := range fx.Users {
			u, created, err := fixtureUser(tx, uf)
			if err != nil {
				return fmt.Errorf("user %s: %w", uf.Email, err)
			}
			if created {
				res.Users++
			}
			users[u.Email] = u
		}

		lookup := func(email string) (*models.User, error) {
			u, ok := users[models.NormalizeEmail(email)]
			if !ok {
				return nil, fmt.Errorf("unknown user %q", email)
			}
			return u, nil
		}

		for _, df := range fx.Discussions {
			if err := fixtureDiscussion(tx, df, lookup, res); err != nil {
				return fmt.Errorf("discussion %q: %w", df.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func fixtureUser(tx *gorm.DB, uf UserFixture) (*models.User, bool, error) {
	email := models.NormalizeEmail(uf.Email)
	var existing models.User
	err := tx.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	in := service.NewUserInput{
		Email:     email,
		Password:  uf.Password,
		FirstName: uf.FirstName,
		LastName:  uf.LastName,
		Username:  uf.Username,
	}
	factory := service.NewUserFactory()
	var u *models.User
	if uf.Superuser {
		u, err = factory.NewSuperuser(in)
	} else {
		u, err = factory.NewUser(in)
	}
	if err != nil {
		return nil, false, err
	}
	if err := tx.Create(u).Error; err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func fixtureDiscussion(tx *gorm.DB, df DiscussionFixture, lookup func(string) (*models.User, error), res *Result) error {
	author, err := lookup(df.Author)
	if err != nil {
		return err
	}
	category := df.Category
	if category == "" {
		category = models.CategoryOthers
	}
	if !models.IsValidCategory(category) {
		return fmt.Errorf("invalid category %q", category)
	}

	d := models.Discussion{Slug: service.SlugifyTitle(df.Title)}
	err = tx.Where("slug = ?", d.Slug).First(&d).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		d = models.Discussion{
			UserID:   author.ID,
			Title:    df.Title,
			Slug:     d.Slug,
			Content:  strings.TrimSpace(df.Content),
			Category: category,
			Tags:     df.Tags,
		}
		if err := tx.Omit(clause.Associations).Create(&d).Error; err != nil {
			return err
		}
		res.Discussions++
	case err != nil:
		return err
	}

	for _, cf := range df.Comments {
		commenter, err := lookup(cf.Author)
		if err != nil {
			return err
		}
		c := models.Comment{UserID: commenter.ID, DiscussionID: d.ID, Content: cf.Content}
		created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&c)
		if created.Error != nil {
			return created.Error
		}
		res.Comments += int(created.RowsAffected)
	}

	for _, email := range df.LikedBy {
		liker, err := lookup(email)
		if err != nil {
			return err
		}
		n, err := insertLike(tx, liker.ID, d.ID)
		if err != nil {
			return err
		}
		res.Likes += n
	}
	return nil
}

func insertLike(tx *gorm.DB, userID, discussionID uint) (int, error) {
	like := models.DiscussionLike{UserID: userID, DiscussionID: discussionID}
	created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
	return int(created.RowsAffected), created.Error
}
