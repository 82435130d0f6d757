package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"forum/internal/authz"
	"forum/internal/models"
	"forum/internal/observability"
	"forum/internal/repository"
	"forum/internal/validation"

	"github.com/gosimple/slug"
)

const slugCreateAttempts = 3

var errNilActor = models.NewUnauthorizedError("Authentication credentials were not provided.")

// DiscussionService implements discussion CRUD, likes and comments.
type DiscussionService struct {
	discussions repository.DiscussionRepository
	comments    repository.CommentRepository
	images      *ImageService
}

type CreateDiscussionInput struct {
	UserID   uint
	Title    string
	Content  string
	Category string
	Tags     string
	Image    *UploadImageInput
}

// UpdateDiscussionInput holds editable fields. Nil means unchanged; the slug never changes.
type UpdateDiscussionInput struct {
	DiscussionID uint
	Title        *string
	Content      *string
	Category     *string
	Tags         *string
	Image        *UploadImageInput
}

func NewDiscussionService(
	discussions repository.DiscussionRepository,
	comments repository.CommentRepository,
	images *ImageService,
) *DiscussionService {
	return &DiscussionService{discussions: discussions, comments: comments, images: images}
}

// Create validates the input, derives a unique slug from the title and stores the discussion.
func (s *DiscussionService) Create(ctx context.Context, in CreateDiscussionInput) (*models.Discussion, error) {
	ctx, span := observability.StartSpan(ctx, "DiscussionService.Create")
	d, err := s.create(ctx, in)
	observability.EndSpan(span, err)
	return d, err
}

func (s *DiscussionService) create(ctx context.Context, in CreateDiscussionInput) (*models.Discussion, error) {
	if in.UserID == 0 {
		return nil, errNilActor
	}
	title := validation.SanitizePlain(in.Title)
	if err := validation.ValidateTitle(title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	content := validation.SanitizeRich(in.Content)
	if err := validation.ValidateContent("content", content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = models.CategoryOthers
	}
	if err := validation.ValidateCategory(category); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	tags := validation.SanitizePlain(in.Tags)
	if err := validation.ValidateTags(tags); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	d := &models.Discussion{
		UserID:   in.UserID,
		Title:    title,
		Content:  content,
		Category: category,
		Tags:     tags,
		Comments: []models.Comment{},
	}
	if in.Image != nil {
		img, err := s.images.Store(ctx, *in.Image)
		if err != nil {
			return nil, err
		}
		d.Img = img
	}

	var err error
	for attempt := 0; attempt < slugCreateAttempts; attempt++ {
		d.Slug, err = s.uniqueSlug(ctx, title)
		if err != nil {
			break
		}
		d.ID = 0
		if err = s.discussions.Create(ctx, d); !errors.Is(err, repository.ErrDuplicateSlug) {
			break
		}
	}
	if err != nil {
		if d.Img != "" {
			s.images.Delete(ctx, d.Img)
		}
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, models.NewValidationError("discussion with this slug already exists.")
		}
		return nil, err
	}
	observability.ForumActions.WithLabelValues("discussion_created").Inc()
	return d, nil
}

// uniqueSlug slugifies title and appends the first free "-N" suffix on collision.
func (s *DiscussionService) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := SlugifyTitle(title)
	taken, err := s.discussions.SlugsWithPrefix(ctx, base)
	if err != nil {
		return "", err
	}
	return nextFreeSlug(base, taken), nil
}

// SlugifyTitle turns a title into the base slug, bounded so a numeric suffix still fits the column.
func SlugifyTitle(title string) string {
	base := slug.Make(title)
	if base == "" {
		base = "discussion"
	}
	const room = 10
	if len(base) > models.MaxSlugLen-room {
		base = strings.TrimRight(base[:models.MaxSlugLen-room], "-")
	}
	return base
}

func nextFreeSlug(base string, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, t := range taken {
		used[t] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return base
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}

func (s *DiscussionService) List(ctx context.Context, limit, offset int) ([]models.Discussion, int64, error) {
	return s.discussions.List(ctx, limit, offset)
}

func (s *DiscussionService) ListMine(ctx context.Context, userID uint, limit, offset int) ([]models.Discussion, int64, error) {
	return s.discussions.ListByUser(ctx, userID, limit, offset)
}

func (s *DiscussionService) Get(ctx context.Context, id uint) (*models.Discussion, error) {
	return s.discussions.GetByID(ctx, id)
}

// Update edits an owned discussion in place. A new image replaces the old file.
func (s *DiscussionService) Update(ctx context.Context, actor *models.User, in UpdateDiscussionInput) (*models.Discussion, error) {
	if actor == nil {
		return nil, errNilActor
	}
	d, err := s.discussions.GetByID(ctx, in.DiscussionID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAct(actor, authz.DiscussionResource{D: d}, authz.ActionUpdate) {
		return nil, models.NewForbiddenError("You cannot edit a post you did not create.")
	}

	fields := map[string]interface{}{}
	if in.Title != nil {
		title := validation.SanitizePlain(*in.Title)
		if err := validation.ValidateTitle(title); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["title"] = title
	}
	if in.Content != nil {
		content := validation.SanitizeRich(*in.Content)
		if err := validation.ValidateContent("content", content); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["content"] = content
	}
	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		if err := validation.ValidateCategory(category); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["category"] = category
	}
	if in.Tags != nil {
		tags := validation.SanitizePlain(*in.Tags)
		if err := validation.ValidateTags(tags); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["tags"] = tags
	}
	oldImg := d.Img
	if in.Image != nil {
		img, err := s.images.Store(ctx, *in.Image)
		if err != nil {
			return nil, err
		}
		fields["img"] = img
	}

	if err := s.discussions.Update(ctx, d.ID, fields); err != nil {
		if newImg, ok := fields["img"].(string); ok && newImg != oldImg {
			s.images.Delete(ctx, newImg)
		}
		return nil, err
	}
	if newImg, ok := fields["img"].(string); ok && oldImg != "" && newImg != oldImg {
		s.images.Delete(ctx, oldImg)
	}
	return s.discussions.GetByID(ctx, d.ID)
}

// Delete removes an owned discussion with its comments, likes and image.
func (s *DiscussionService) Delete(ctx context.Context, actor *models.User, id uint) error {
	if actor == nil {
		return errNilActor
	}
	d, err := s.discussions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !authz.CanAct(actor, authz.DiscussionResource{D: d}, authz.ActionDelete) {
		return models.NewForbiddenError("You cannot delete a post you did not create.")
	}
	if err := s.discussions.Delete(ctx, id); err != nil {
		return err
	}
	if d.Img != "" {
		s.images.Delete(ctx, d.Img)
	}
	return nil
}

// ToggleLike flips the actor's like and returns the refreshed discussion and the new state.
func (s *DiscussionService) ToggleLike(ctx context.Context, actor *models.User, id uint) (*models.Discussion, bool, error) {
	if actor == nil {
		return nil, false, errNilActor
	}
	if _, err := s.discussions.GetByID(ctx, id); err != nil {
		return nil, false, err
	}
	liked, err := s.discussions.ToggleLike(ctx, id, actor.ID)
	if err != nil {
		return nil, false, err
	}
	d, err := s.discussions.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if liked {
		observability.ForumActions.WithLabelValues("discussion_liked").Inc()
	} else {
		observability.ForumActions.WithLabelValues("discussion_unliked").Inc()
	}
	return d, liked, nil
}

// AddComment creates the actor's comment on the discussion or replaces its content.
func (s *DiscussionService) AddComment(ctx context.Context, actor *models.User, discussionID uint, content string) (*models.Comment, bool, error) {
	if actor == nil {
		return nil, false, errNilActor
	}
	if _, err := s.discussions.GetByID(ctx, discussionID); err != nil {
		return nil, false, err
	}
	content = validation.SanitizeRich(content)
	if err := validation.ValidateContent("content", content); err != nil {
		return nil, false, models.NewValidationError(err.Error())
	}
	comment, created, err := s.comments.Upsert(ctx, actor.ID, discussionID, content)
	if err != nil {
		return nil, false, err
	}
	observability.ForumActions.WithLabelValues("comment_upserted").Inc()
	return comment, created, nil
}

// DeleteComment removes an owned comment that belongs to discussionID.
func (s *DiscussionService) DeleteComment(ctx context.Context, actor *models.User, discussionID, commentID uint) error {
	if actor == nil {
		return errNilActor
	}
	if commentID == 0 {
		return models.NewNotFoundMessage("Comment not found.")
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.DiscussionID != discussionID {
		return models.NewNotFoundMessage("Comment not found.")
	}
	if !authz.CanAct(actor, authz.CommentResource{C: comment}, authz.ActionDelete) {
		return models.NewForbiddenError("You cannot delete a comment you did not create.")
	}
	return s.comments.Delete(ctx, commentID)
}
