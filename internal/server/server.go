// Package server contains HTTP and WebSocket handlers for the forum API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "forum/docs" // swagger docs
	"forum/internal/auth"
	"forum/internal/bootstrap"
	"forum/internal/config"
	"forum/internal/database"
	"forum/internal/mailer"
	"forum/internal/middleware"
	"forum/internal/models"
	"forum/internal/notifications"
	"forum/internal/repository"
	"forum/internal/service"
	"forum/internal/tasks"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	tokens   *auth.JWTManager
	notifier *notifications.Notifier
	hub      *notifications.Hub
	queue    tasks.Queue

	authService       *service.AuthService
	userService       *service.UserService
	discussionService *service.DiscussionService
	images            *service.ImageService
}

// NewServer initializes the runtime (database, Redis, dev bootstrap) and builds a Server on top of it.
func NewServer(cfg *config.Config, opts bootstrap.Options) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, opts)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	tokens, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	if err != nil {
		return nil, err
	}

	sender, err := mailer.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("mail transport: %w", err)
	}
	mux := tasks.NewMux()
	notifications.RegisterHandlers(mux, sender)
	queue := tasks.NewQueue(cfg, redisClient, mux)

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	discussionRepo := repository.NewDiscussionRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	resetRepo := repository.NewPasswordResetRepository(db)

	images := service.NewImageService(cfg)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("forum-api"),
		tokens:         tokens,
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		queue:          queue,
		images:         images,
	}
	server.authService = service.NewAuthService(
		userRepo, resetRepo, service.NewUserFactory(), tokens,
		notifications.NewDispatcher(queue, cfg.FrontendURL),
		cfg.PasswordResetTokenTTL(),
	)
	server.userService = service.NewUserService(userRepo, profileRepo, discussionRepo, images)
	server.discussionService = service.NewDiscussionService(discussionRepo, commentRepo, images)

	return server, nil
}

// NewApp builds a Fiber app with middleware and routes registered.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Forum API",
		BodyLimit:    s.bodyLimit(),
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// bodyLimit leaves room for multipart overhead around the largest accepted image.
func (s *Server) bodyLimit() int {
	mb := s.config.ImageMaxUploadSizeMB
	if mb <= 0 {
		mb = 5
	}
	return (mb + 1) * 1024 * 1024
}

// errorHandler renders errors that escaped a handler in the standard error shape.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Detail: fe.Message})
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return respondError(c, err)
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New(recover.Config{EnableStackTrace: !s.config.IsProduction()}))
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Images are served cross-origin to the frontend.
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PATCH,PUT,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Detail: "Request was throttled.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Forum Backend Metrics Dashboard",
	}))

	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Static(strings.TrimSuffix(service.MediaURLPrefix, "/"), s.images.MediaDir(), fiber.Static{
		Browse:        false,
		CacheDuration: time.Hour,
	})

	accounts := app.Group("/accounts")
	accounts.Post("/register", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "register"), s.Register)
	accounts.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	accounts.Post("/login/refresh-token", s.RefreshToken)

	reset := accounts.Group("/password-reset")
	reset.Post("/", middleware.RateLimit(
		s.redis, 5, 15*time.Minute, "password_reset"), s.RequestPasswordReset)
	reset.Post("/validate_token", s.ValidateResetToken)
	reset.Post("/confirm", middleware.RateLimit(
		s.redis, 10, 15*time.Minute, "password_reset_confirm"), s.ConfirmPasswordReset)

	dashboard := accounts.Group("/dashboard", s.AuthRequired())
	dashboard.Get("/", s.GetDashboard)
	dashboard.Get("/:id", s.GetDashboardUser)
	dashboard.Patch("/:id", s.UpdateDashboardUser)
	dashboard.Put("/:id", s.UpdateDashboardUser)
	dashboard.Delete("/:id", s.DeleteDashboardUser)

	forums := app.Group("/forums", s.AuthRequired())
	forums.Get("/", s.ListDiscussions)
	forums.Post("/", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "create_discussion"), s.CreateDiscussion)
	// Specific routes before the generic /:id ones.
	forums.Get("/mine", s.ListMyDiscussions)
	forums.Post("/:id/like-unlike", s.ToggleLike)
	forums.Post("/:id/add-comment", middleware.RateLimit(
		s.redis, 20, time.Minute, "add_comment"), s.AddComment)
	forums.Delete("/:id/delete-comment", s.DeleteComment)
	forums.Get("/:id", s.GetDiscussion)
	forums.Patch("/:id", s.UpdateDiscussion)
	forums.Put("/:id", s.UpdateDiscussion)
	forums.Delete("/:id", s.DeleteDiscussion)

	app.Get("/ws", s.AuthRequired(), s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: without it the queue and realtime fan-out run in process.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired verifies the access token and loads the acting user.
// WebSocket upgrades may pass the token as ?token= since browsers cannot set headers there.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" && isWebSocketUpgrade(c) {
			raw = c.Query("token")
		}
		if raw == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authentication credentials were not provided."))
		}

		claims, err := s.tokens.Verify(raw, auth.TokenTypeAccess)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Given token not valid for any token type"))
		}

		user, err := s.userService.GetActor(c.UserContext(), claims.UserID)
		if err != nil {
			return respondError(c, err)
		}

		c.Locals("userID", user.ID)
		c.Locals("user", user)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), user.ID))
		return c.Next()
	}
}

// Start wires background workers and listens until the app is shut down.
func (s *Server) Start() error {
	s.app = s.NewApp()
	if err := s.startBackground(context.Background()); err != nil {
		return err
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// startBackground connects the hub to the realtime channels and starts in-process task workers.
func (s *Server) startBackground(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
		cancel()
		return fmt.Errorf("start %s hub wiring: %w", s.hub.Name(), err)
	}

	if rq, ok := s.queue.(*tasks.RedisQueue); ok && s.config.TaskWorkers > 0 {
		rq.Start(ctx, s.config.TaskWorkers)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
	}

	// Let in-flight tasks finish before their connections go away.
	if w, ok := s.queue.(interface{ Wait() }); ok {
		w.Wait()
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing database", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
