package repository

import (
	"context"
	"errors"

	"forum/internal/cache"
	"forum/internal/database"
	"forum/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateSlug is returned by Create when another discussion already owns the slug.
var ErrDuplicateSlug = errors.New("discussion slug already exists")

// DiscussionRepository defines the interface for discussion data operations.
// Reads return discussions with LikesCount and Comments filled in.
type DiscussionRepository interface {
	Create(ctx context.Context, d *models.Discussion) error
	// SlugsWithPrefix lists base and every "base-*" slug in use.
	SlugsWithPrefix(ctx context.Context, base string) ([]string, error)
	GetByID(ctx context.Context, id uint) (*models.Discussion, error)
	List(ctx context.Context, limit, offset int) ([]models.Discussion, int64, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Discussion, int64, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
	ImagePathsByUser(ctx context.Context, userID uint) ([]string, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	// Delete removes the discussion with its comments and likes.
	Delete(ctx context.Context, id uint) error
	// ToggleLike adds the like when absent and removes it otherwise. It reports the new state.
	ToggleLike(ctx context.Context, discussionID, userID uint) (bool, error)
	CountLikes(ctx context.Context, discussionID uint) (int64, error)
}

type discussionRepository struct {
	db *gorm.DB
}

// NewDiscussionRepository returns a new DiscussionRepository implementation.
func NewDiscussionRepository(db *gorm.DB) DiscussionRepository {
	return &discussionRepository{db: db}
}

func (r *discussionRepository) Create(ctx context.Context, d *models.Discussion) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(d).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *discussionRepository) SlugsWithPrefix(ctx context.Context, base string) ([]string, error) {
	var slugs []string
	err := r.db.WithContext(ctx).Model(&models.Discussion{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &slugs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return slugs, nil
}

func (r *discussionRepository) GetByID(ctx context.Context, id uint) (*models.Discussion, error) {
	var d models.Discussion
	err := cache.Aside(ctx, cache.DiscussionKey(id), &d, cache.DiscussionTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).First(&d, id).Error; err != nil {
			if database.IsNotFound(err) {
				return models.NewNotFoundMessage("Discussion not found")
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	list := []models.Discussion{d}
	if err := r.hydrate(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *discussionRepository) List(ctx context.Context, limit, offset int) ([]models.Discussion, int64, error) {
	return r.page(ctx, readDB(r.db).WithContext(ctx).Model(&models.Discussion{}), limit, offset)
}

func (r *discussionRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Discussion, int64, error) {
	scope := readDB(r.db).WithContext(ctx).Model(&models.Discussion{}).Where("user_id = ?", userID)
	return r.page(ctx, scope, limit, offset)
}

func (r *discussionRepository) page(ctx context.Context, scope *gorm.DB, limit, offset int) ([]models.Discussion, int64, error) {
	items, total, err := pageOf[models.Discussion](scope, limit, offset, "created_at desc, id desc")
	if err != nil {
		return nil, 0, err
	}
	if err := r.hydrate(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// hydrate loads like counts and comments for items in two queries.
func (r *discussionRepository) hydrate(ctx context.Context, items []models.Discussion) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]uint, len(items))
	for i := range items {
		ids[i] = items[i].ID
		items[i].Comments = []models.Comment{}
		items[i].LikesCount = 0
	}
	db := readDB(r.db).WithContext(ctx)

	var counts []struct {
		DiscussionID uint
		Total        int64
	}
	err := db.Model(&models.DiscussionLike{}).
		Select("discussion_id, count(*) as total").
		Where("discussion_id IN ?", ids).
		Group("discussion_id").
		Scan(&counts).Error
	if err != nil {
		return models.NewInternalError(err)
	}

	var comments []models.Comment
	if err := db.Where("discussion_id IN ?", ids).Order("created_at asc").Order("id asc").Find(&comments).Error; err != nil {
		return models.NewInternalError(err)
	}

	index := make(map[uint]int, len(items))
	for i := range items {
		index[items[i].ID] = i
	}
	for _, c := range counts {
		if i, ok := index[c.DiscussionID]; ok {
			items[i].LikesCount = c.Total
		}
	}
	for _, c := range comments {
		if i, ok := index[c.DiscussionID]; ok {
			items[i].Comments = append(items[i].Comments, c)
		}
	}
	return nil
}

func (r *discussionRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Discussion{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *discussionRepository) ImagePathsByUser(ctx context.Context, userID uint) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).Model(&models.Discussion{}).
		Where("user_id = ? AND img <> ''", userID).
		Pluck("img", &paths).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return paths, nil
}

func (r *discussionRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Discussion{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	cache.InvalidateDiscussion(ctx, id)
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("Discussion not found")
	}
	return nil
}

func (r *discussionRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("discussion_id = ?", id).Delete(&models.DiscussionLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("discussion_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Discussion{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundMessage("Discussion not found")
		}
		return nil
	})
	cache.InvalidateDiscussion(ctx, id)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return err
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *discussionRepository) ToggleLike(ctx context.Context, discussionID, userID uint) (bool, error) {
	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("discussion_id = ? AND user_id = ?", discussionID, userID).Delete(&models.DiscussionLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		liked = true
		like := models.DiscussionLike{DiscussionID: discussionID, UserID: userID}
		// A concurrent toggle may have inserted the pair already.
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return liked, nil
}

func (r *discussionRepository) CountLikes(ctx context.Context, discussionID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.DiscussionLike{}).Where("discussion_id = ?", discussionID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
