package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"forum/internal/authz"
	"forum/internal/middleware"
	"forum/internal/models"
	"forum/internal/repository"
	"forum/internal/validation"
)

// UserService backs the dashboard: users see and manage themselves, superusers manage everyone.
type UserService struct {
	users       repository.UserRepository
	profiles    repository.ProfileRepository
	discussions repository.DiscussionRepository
	images      *ImageService
}

// DashboardUser is what a regular user sees on their dashboard.
type DashboardUser struct {
	ID              uint                `json:"id"`
	Email           string              `json:"email"`
	Username        string              `json:"username"`
	FirstName       string              `json:"first_name"`
	LastName        string              `json:"last_name"`
	IsVerified      bool                `json:"is_verified"`
	IsStaff         bool                `json:"is_staff"`
	IsSuperuser     bool                `json:"is_superuser"`
	IsActive        bool                `json:"is_active"`
	LastLogin       *time.Time          `json:"last_login"`
	Profile         *models.UserProfile `json:"profile"`
	DiscussionCount int64               `json:"discussion_count"`
}

// UserUpdate is the response body of a dashboard partial update.
type UserUpdate struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// UpdateUserInput holds the editable fields. Nil means unchanged.
type UpdateUserInput struct {
	TargetID  uint
	FirstName *string
	LastName  *string
	Username  *string
}

func NewUserService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	discussions repository.DiscussionRepository,
	images *ImageService,
) *UserService {
	return &UserService{users: users, profiles: profiles, discussions: discussions, images: images}
}

// GetActor loads the authenticated user. Deleted or deactivated accounts are rejected.
func (s *UserService) GetActor(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("User not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, models.NewUnauthorizedError("User is inactive")
	}
	return user, nil
}

// Summary returns the actor's own dashboard entry.
func (s *UserService) Summary(ctx context.Context, actor *models.User) (*DashboardUser, error) {
	profile := actor.Profile
	if profile == nil {
		p, err := s.profiles.Ensure(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		profile = p
	}
	count, err := s.discussions.CountByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return &DashboardUser{
		ID:              actor.ID,
		Email:           actor.Email,
		Username:        actor.Username,
		FirstName:       actor.FirstName,
		LastName:        actor.LastName,
		IsVerified:      actor.IsVerified,
		IsStaff:         actor.IsStaff,
		IsSuperuser:     actor.IsSuperuser,
		IsActive:        actor.IsActive,
		LastLogin:       actor.LastLogin,
		Profile:         profile,
		DiscussionCount: count,
	}, nil
}

// ListAll pages through every user. Superusers only.
func (s *UserService) ListAll(ctx context.Context, actor *models.User, limit, offset int) ([]models.User, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, models.NewForbiddenError("You do not have permission to perform this action.")
	}
	return s.users.List(ctx, limit, offset)
}

// Retrieve returns targetID when the actor may see it. Others are reported as missing.
func (s *UserService) Retrieve(ctx context.Context, actor *models.User, targetID uint) (*models.User, error) {
	if !authz.CanAct(actor, authz.UserResource(targetID), authz.ActionView) {
		return nil, maskedUserNotFound()
	}
	return s.users.GetByID(ctx, targetID)
}

// Update changes first_name, last_name and username.
func (s *UserService) Update(ctx context.Context, actor *models.User, in UpdateUserInput) (*UserUpdate, error) {
	if !authz.CanAct(actor, authz.UserResource(in.TargetID), authz.ActionUpdate) {
		return nil, maskedUserNotFound()
	}
	target, err := s.users.GetByID(ctx, in.TargetID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.FirstName != nil {
		v := validation.SanitizePlain(*in.FirstName)
		if err := validation.ValidateName("first_name", v); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["first_name"] = v
		target.FirstName = v
	}
	if in.LastName != nil {
		v := validation.SanitizePlain(*in.LastName)
		if err := validation.ValidateName("last_name", v); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["last_name"] = v
		target.LastName = v
	}
	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(v); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["username"] = v
		target.Username = v
	}
	if err := s.users.UpdateFields(ctx, target.ID, fields); err != nil {
		return nil, err
	}
	return &UserUpdate{FirstName: target.FirstName, LastName: target.LastName, Username: target.Username}, nil
}

// Delete removes the target account with everything it owns, including stored images.
func (s *UserService) Delete(ctx context.Context, actor *models.User, targetID uint) error {
	if !authz.CanAct(actor, authz.UserResource(targetID), authz.ActionDelete) {
		return maskedUserNotFound()
	}
	images, err := s.discussions.ImagePathsByUser(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, targetID); err != nil {
		return err
	}
	if s.images != nil {
		s.images.DeleteAll(ctx, images)
	}
	middleware.Logger.InfoContext(ctx, "user deleted",
		slog.Uint64("target_id", uint64(targetID)),
		slog.Uint64("actor_id", uint64(actor.ID)),
	)
	return nil
}

func maskedUserNotFound() error {
	return models.NewNotFoundMessage("No User matches the given query.")
}
