package repository

import (
	"context"
	"time"

	"forum/internal/database"
	"forum/internal/models"

	"gorm.io/gorm"
)

// PasswordResetRepository stores single-use password reset keys.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	// GetByKey loads the token together with its user.
	GetByKey(ctx context.Context, key string) (*models.PasswordResetToken, error)
	LatestForUser(ctx context.Context, userID uint) (*models.PasswordResetToken, error)
	Delete(ctx context.Context, id uint) error
	DeleteForUser(ctx context.Context, userID uint) error
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type passwordResetRepository struct {
	db *gorm.DB
}

// NewPasswordResetRepository returns a new PasswordResetRepository implementation.
func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(token).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *passwordResetRepository) GetByKey(ctx context.Context, key string) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	if err := r.db.WithContext(ctx).Preload("User").Where("reset_key = ?", key).First(&token).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, models.NewNotFoundMessage("The OTP password entered is not valid. Please check and try again.")
		}
		return nil, models.NewInternalError(err)
	}
	return &token, nil
}

func (r *passwordResetRepository) LatestForUser(ctx context.Context, userID uint) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		First(&token).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &token, nil
}

func (r *passwordResetRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.PasswordResetToken{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *passwordResetRepository) DeleteForUser(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.PasswordResetToken{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *passwordResetRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.PasswordResetToken{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
