package repository

import (
	"context"

	"forum/internal/database"
	"forum/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	// Upsert writes the user's single comment on a discussion. created reports whether a row was inserted.
	Upsert(ctx context.Context, userID, discussionID uint, content string) (comment *models.Comment, created bool, err error)
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByDiscussion(ctx context.Context, discussionID uint) ([]models.Comment, error)
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Upsert(ctx context.Context, userID, discussionID uint, content string) (*models.Comment, bool, error) {
	comment, err := r.find(ctx, userID, discussionID)
	if err != nil {
		return nil, false, err
	}
	if comment != nil {
		return r.rewrite(ctx, comment, content)
	}

	comment = &models.Comment{UserID: userID, DiscussionID: discussionID, Content: content}
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		if !database.IsUniqueViolation(err) {
			return nil, false, models.NewInternalError(err)
		}
		// Lost the race against a concurrent insert for the same pair.
		existing, findErr := r.find(ctx, userID, discussionID)
		if findErr != nil || existing == nil {
			return nil, false, models.NewInternalError(err)
		}
		return r.rewrite(ctx, existing, content)
	}
	return comment, true, nil
}

func (r *commentRepository) find(ctx context.Context, userID, discussionID uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND discussion_id = ?", userID, discussionID).
		First(&comment).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &comment, nil
}

func (r *commentRepository) rewrite(ctx context.Context, comment *models.Comment, content string) (*models.Comment, bool, error) {
	comment.Content = content
	if err := r.db.WithContext(ctx).Model(comment).Update("content", content).Error; err != nil {
		return nil, false, models.NewInternalError(err)
	}
	return comment, false, nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, models.NewNotFoundMessage("Comment not found.")
		}
		return nil, models.NewInternalError(err)
	}
	return &comment, nil
}

func (r *commentRepository) ListByDiscussion(ctx context.Context, discussionID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := readDB(r.db).WithContext(ctx).
		Where("discussion_id = ?", discussionID).
		Order("created_at asc").Order("id asc").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("Comment not found.")
	}
	return nil
}
