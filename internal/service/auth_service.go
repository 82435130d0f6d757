package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"forum/internal/auth"
	"forum/internal/middleware"
	"forum/internal/models"
	"forum/internal/observability"
	"forum/internal/repository"
	"forum/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// AuthService handles registration, login, token refresh and password resets.
type AuthService struct {
	users    repository.UserRepository
	resets   repository.PasswordResetRepository
	factory  *UserFactory
	tokens   *auth.JWTManager
	events   EventPublisher
	resetTTL time.Duration
	now      func() time.Time
}

type RegisterInput = NewUserInput

// LoginResult is the token pair plus the identity fields returned by login.
type LoginResult struct {
	Refresh     string `json:"refresh"`
	Access      string `json:"access"`
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IsVerified  bool   `json:"is_verified"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

type PasswordResetRequestInput struct {
	Email     string
	IPAddress string
	UserAgent string
}

type ConfirmPasswordResetInput struct {
	Token    string
	Password string
}

func NewAuthService(
	users repository.UserRepository,
	resets repository.PasswordResetRepository,
	factory *UserFactory,
	tokens *auth.JWTManager,
	events EventPublisher,
	resetTTL time.Duration,
) *AuthService {
	if events == nil {
		events = noopPublisher{}
	}
	return &AuthService{
		users:    users,
		resets:   resets,
		factory:  factory,
		tokens:   tokens,
		events:   events,
		resetTTL: resetTTL,
		now:      time.Now,
	}
}

// Register creates a user and its profile.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	ctx, span := observability.StartSpan(ctx, "AuthService.Register")
	user, err := s.register(ctx, in)
	observability.EndSpan(span, err)
	return user, err
}

func (s *AuthService) register(ctx context.Context, in RegisterInput) (*models.User, error) {
	user, err := s.factory.NewUser(in)
	if err != nil {
		return nil, err
	}
	exists, err := s.users.EmailExists(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.NewValidationError("user with this email already exists.")
	}
	// The unique index still guards against a concurrent registration.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	invalid := models.NewUnauthorizedError("No active account found with the given credentials")
	if email == "" || password == "" {
		return nil, invalid
	}

	user, err := s.users.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if !user.IsActive || !user.CheckPassword(password) {
		return nil, invalid
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.users.TouchLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to record last login", slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
	}

	return &LoginResult{
		Refresh:     pair.Refresh,
		Access:      pair.Access,
		ID:          user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		IsVerified:  user.IsVerified,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", models.NewValidationError("refresh is required")
	}
	claims, err := s.tokens.Verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return "", models.NewUnauthorizedError("Token is invalid or expired")
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return "", models.NewUnauthorizedError("User not found")
		}
		return "", err
	}
	if !user.IsActive {
		return "", models.NewUnauthorizedError("User is inactive")
	}
	access, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return access, nil
}

// RequestPasswordReset issues (or reuses) a reset key for an active account and emits
// PasswordResetRequested. Unknown addresses succeed silently so callers cannot probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, in PasswordResetRequestInput) error {
	ctx, span := observability.StartSpan(ctx, "AuthService.RequestPasswordReset")
	defer span.End()

	if err := validation.ValidateEmail(models.NormalizeEmail(in.Email)); err != nil {
		return models.NewValidationError(err.Error())
	}

	if _, err := s.resets.DeleteCreatedBefore(ctx, s.now().Add(-s.resetTTL)); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to purge expired reset tokens", slog.String("error", err.Error()))
	}

	user, err := s.users.GetByEmail(ctx, models.NormalizeEmail(in.Email))
	if err != nil {
		if !models.IsCode(err, models.CodeNotFound) {
			middleware.Logger.ErrorContext(ctx, "password reset lookup failed", slog.String("error", err.Error()))
		}
		return nil
	}
	if !user.IsActive || user.Password == "" {
		return nil
	}

	token, err := s.resets.LatestForUser(ctx, user.ID)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "password reset lookup failed", slog.String("error", err.Error()))
		return nil
	}
	if token == nil || token.Expired(s.now(), s.resetTTL) {
		key, keyErr := newResetKey()
		if keyErr != nil {
			middleware.Logger.ErrorContext(ctx, "failed to generate reset key", slog.String("error", keyErr.Error()))
			return nil
		}
		token = &models.PasswordResetToken{
			UserID:    user.ID,
			Key:       key,
			IPAddress: truncate(in.IPAddress, 45),
			UserAgent: truncate(in.UserAgent, 256),
		}
		if err := s.resets.Create(ctx, token); err != nil {
			middleware.Logger.ErrorContext(ctx, "failed to store reset key", slog.String("error", err.Error()))
			return nil
		}
	}

	span.SetAttributes(attribute.Int64("user.id", int64(user.ID)))
	event := PasswordResetRequested{UserID: user.ID, Email: user.Email, FirstName: user.FirstName, Token: token.Key}
	if err := s.events.Publish(ctx, event); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to dispatch password reset email",
			slog.Uint64("user_id", uint64(user.ID)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// ValidateResetToken checks that the key exists and has not expired. Expired keys are removed.
func (s *AuthService) ValidateResetToken(ctx context.Context, key string) error {
	_, err := s.lookupResetToken(ctx, key)
	return err
}

// ConfirmPasswordReset sets a new password and invalidates every reset key of the user.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, in ConfirmPasswordResetInput) error {
	token, err := s.lookupResetToken(ctx, in.Token)
	if err != nil {
		return err
	}
	if in.Password == "" {
		return models.NewValidationError("password is required")
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return models.NewValidationError(err.Error())
	}
	if token.User == nil || !token.User.IsActive {
		return models.NewNotFoundMessage("The OTP password entered is not valid. Please check and try again.")
	}

	if err := token.User.SetPassword(in.Password); err != nil {
		return models.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, token.UserID, token.User.Password); err != nil {
		return err
	}
	return s.resets.DeleteForUser(ctx, token.UserID)
}

func (s *AuthService) lookupResetToken(ctx context.Context, key string) (*models.PasswordResetToken, error) {
	if key == "" {
		return nil, models.NewValidationError("token is required")
	}
	token, err := s.resets.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if token.Expired(s.now(), s.resetTTL) {
		if delErr := s.resets.Delete(ctx, token.ID); delErr != nil {
			middleware.Logger.WarnContext(ctx, "failed to delete expired reset token", slog.String("error", delErr.Error()))
		}
		return nil, models.NewNotFoundMessage("The token has expired")
	}
	return token, nil
}

func newResetKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
