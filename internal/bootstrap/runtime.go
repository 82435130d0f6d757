// Package bootstrap wires the process-wide runtime shared by the API and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"forum/internal/cache"
	"forum/internal/config"
	"forum/internal/database"
	"forum/internal/middleware"
	"forum/internal/models"
	"forum/internal/repository"
	"forum/internal/seed"
	"forum/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo loads the bundled demo fixtures after connecting.
	SeedDemo bool
}

// InitRuntime connects to the database and Redis. A nil Redis client means
// Redis was not configured or is unreachable; callers fall back to in-process paths.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	if err := ensureDevSuperuser(context.Background(), cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development superuser: %w", err)
	}

	if opts.SeedDemo {
		if _, err := seed.LoadFixtures(db, seed.DefaultFixtures()); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo fixtures: %w", err)
		}
	}

	return db, rdb, nil
}

// ensureDevSuperuser creates the configured superuser in development when it does not exist yet.
func ensureDevSuperuser(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapSuperuser {
		return nil
	}
	if cfg.DevSuperuserPassword == "" {
		return fmt.Errorf("DEV_SUPERUSER_PASSWORD must be set when DEV_BOOTSTRAP_SUPERUSER is enabled")
	}
	email := strings.TrimSpace(cfg.DevSuperuserEmail)
	if email == "" {
		email = "admin@forum.local"
	}

	users := repository.NewUserRepository(db)
	exists, err := users.EmailExists(ctx, models.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	admin, err := service.NewUserFactory().NewSuperuser(service.NewUserInput{
		Email:    email,
		Password: cfg.DevSuperuserPassword,
		Username: "admin",
	})
	if err != nil {
		return err
	}
	if err := users.Create(ctx, admin); err != nil {
		return err
	}

	middleware.Logger.Info("development superuser created", slog.String("email", admin.Email), slog.Uint64("user_id", uint64(admin.ID)))
	return nil
}
