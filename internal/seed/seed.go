// Package seed fills a database with demo data: bundled YAML fixtures and
// randomly generated accounts, discussions, comments and likes.
// It is intended for development and testing only.
package seed

import (
	"fmt"
	"log/slog"

	"forum/internal/middleware"
	"forum/internal/models"

	"gorm.io/gorm"
)

// Options configures generated data.
type Options struct {
	NumUsers       int
	NumDiscussions int
	// MaxComments caps comments per discussion; each commenter writes at most one.
	MaxComments int
	// LikeRatio is the chance, from 0 to 1, that a given user likes a given discussion.
	LikeRatio float64
	// MaxDays spreads discussion timestamps over this many past days.
	MaxDays int
	// Seed makes generation repeatable when non-zero.
	Seed        int64
	ShouldClean bool
}

// Result counts the rows a seeding step created.
type Result struct {
	Users       int
	Discussions int
	Comments    int
	Likes       int
}

// Run generates opts.NumUsers accounts and opts.NumDiscussions discussions with
// comments and likes spread across those accounts.
func Run(db *gorm.DB, opts Options) (*Result, error) {
	if opts.ShouldClean {
		if err := Clean(db); err != nil {
			return nil, err
		}
	}
	if opts.NumDiscussions > 0 && opts.NumUsers <= 0 {
		return nil, fmt.Errorf("discussions need at least one user")
	}

	f := NewFactory(db, opts)
	res := &Result{}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return res, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
		res.Users++
	}

	for i := 0; i < opts.NumDiscussions; i++ {
		author := users[f.faker.Number(0, len(users)-1)]
		d, err := f.CreateDiscussion(author)
		if err != nil {
			return res, fmt.Errorf("create discussion: %w", err)
		}
		res.Discussions++

		commenters := f.faker.Number(0, min(opts.MaxComments, len(users)))
		for _, idx := range f.faker.Rand.Perm(len(users))[:commenters] {
			if _, err := f.CreateComment(users[idx], d); err != nil {
				return res, fmt.Errorf("create comment: %w", err)
			}
			res.Comments++
		}

		for _, u := range users {
			if f.faker.Float64Range(0, 1) >= opts.LikeRatio {
				continue
			}
			if err := f.CreateLike(u, d); err != nil {
				return res, fmt.Errorf("create like: %w", err)
			}
			res.Likes++
		}
	}

	middleware.Logger.Info("seed complete",
		slog.Int("users", res.Users),
		slog.Int("discussions", res.Discussions),
		slog.Int("comments", res.Comments),
		slog.Int("likes", res.Likes),
	)
	return res, nil
}

// Clean removes every forum row, children first.
func Clean(db *gorm.DB) error {
	all := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{
		&models.DiscussionLike{},
		&models.Comment{},
		&models.Discussion{},
		&models.PasswordResetToken{},
		&models.UserProfile{},
		&models.User{},
	} {
		if err := all.Delete(model).Error; err != nil {
			return fmt.Errorf("clean %T: %w", model, err)
		}
	}
	return nil
}
