package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"forum/internal/models"
	"forum/internal/notifications"
	"forum/internal/service"

	"github.com/gofiber/fiber/v2"
)

// DiscussionRequest is the body of POST and PATCH /forums/. Multipart forms use the same
// field names and may carry the image in "img". Absent fields are left alone on PATCH.
type DiscussionRequest struct {
	Title    *string `json:"title" form:"title"`
	Content  *string `json:"content" form:"content"`
	Category *string `json:"category" form:"category"`
	Tags     *string `json:"tags" form:"tags"`
}

type commentRequest struct {
	Content   string `json:"content" form:"content"`
	CommentID uint   `json:"comment_id" form:"comment_id"`
}

// discussionDetail is a discussion with a human readable outcome merged in.
type discussionDetail struct {
	Detail string `json:"detail"`
	*models.Discussion
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// parseDiscussionRequest reads JSON or multipart input. The image is nil when none was sent.
func (s *Server) parseDiscussionRequest(c *fiber.Ctx) (DiscussionRequest, *service.UploadImageInput, error) {
	var req DiscussionRequest
	if err := parseBody(c, &req); err != nil {
		return req, nil, err
	}
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return req, nil, nil
	}

	fh, err := c.FormFile("img")
	if err != nil || fh == nil {
		// No file part; plain form fields only.
		return req, nil, nil
	}
	img, err := readUpload(fh)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
		return req, nil, errResponseWritten
	}
	img.UserID = currentUser(c).ID
	return req, img, nil
}

func readUpload(fh *multipart.FileHeader) (*service.UploadImageInput, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file")
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file")
	}
	return &service.UploadImageInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}

// ListDiscussions handles GET /forums/
// @Summary List discussions
// @Description Newest first, each with its like count and comments.
// @Tags forums
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} object{count=int,next=string,previous=string,results=[]models.Discussion}
// @Router /forums/ [get]
func (s *Server) ListDiscussions(c *fiber.Ctx) error {
	page := parsePagination(c)
	discussions, total, err := s.discussionService.List(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newPage(c, page, total, discussions))
}

// ListMyDiscussions handles GET /forums/mine/
// @Summary List my discussions
// @Tags forums
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} object{count=int,next=string,previous=string,results=[]models.Discussion}
// @Router /forums/mine/ [get]
func (s *Server) ListMyDiscussions(c *fiber.Ctx) error {
	page := parsePagination(c)
	discussions, total, err := s.discussionService.ListMine(c.UserContext(), currentUser(c).ID, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newPage(c, page, total, discussions))
}

// CreateDiscussion handles POST /forums/
// @Summary Start a discussion
// @Description Accepts JSON or multipart/form-data with an optional image in "img".
// @Tags forums
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param request body DiscussionRequest true "Discussion"
// @Success 201 {object} models.Discussion
// @Failure 400 {object} models.ErrorResponse
// @Router /forums/ [post]
func (s *Server) CreateDiscussion(c *fiber.Ctx) error {
	req, img, err := s.parseDiscussionRequest(c)
	if err != nil {
		return nil
	}
	actor := currentUser(c)

	d, err := s.discussionService.Create(c.UserContext(), service.CreateDiscussionInput{
		UserID:   actor.ID,
		Title:    deref(req.Title),
		Content:  deref(req.Content),
		Category: deref(req.Category),
		Tags:     deref(req.Tags),
		Image:    img,
	})
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c.UserContext(), notifications.EventDiscussionCreated, map[string]interface{}{
		"discussion_id": d.ID,
		"slug":          d.Slug,
		"title":         d.Title,
		"user":          actor.ID,
	})
	return c.Status(fiber.StatusCreated).JSON(d)
}

// GetDiscussion handles GET /forums/:id/
// @Summary Get a discussion
// @Tags forums
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Success 200 {object} models.Discussion
// @Failure 404 {object} models.ErrorResponse
// @Router /forums/{id}/ [get]
func (s *Server) GetDiscussion(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	d, err := s.discussionService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(d)
}

// UpdateDiscussion handles PATCH /forums/:id/
// @Summary Update a discussion
// @Description Owner only. The slug never changes.
// @Tags forums
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Param request body DiscussionRequest true "Fields to change"
// @Success 200 {object} models.Discussion
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /forums/{id}/ [patch]
func (s *Server) UpdateDiscussion(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	req, img, err := s.parseDiscussionRequest(c)
	if err != nil {
		return nil
	}

	d, err := s.discussionService.Update(c.UserContext(), currentUser(c), service.UpdateDiscussionInput{
		DiscussionID: id,
		Title:        req.Title,
		Content:      req.Content,
		Category:     req.Category,
		Tags:         req.Tags,
		Image:        img,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(discussionDetail{Detail: "Discussion updated successfully!", Discussion: d})
}

// DeleteDiscussion handles DELETE /forums/:id/
// @Summary Delete a discussion
// @Description Owner only. Comments, likes and the stored image go with it.
// @Tags forums
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Success 200 {object} object{detail=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /forums/{id}/ [delete]
func (s *Server) DeleteDiscussion(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.discussionService.Delete(c.UserContext(), currentUser(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"detail": "Discussion delete successfully!"})
}

// ToggleLike handles POST /forums/:id/like-unlike/
// @Summary Like or unlike a discussion
// @Tags forums
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Success 200 {object} models.Discussion
// @Failure 404 {object} models.ErrorResponse
// @Router /forums/{id}/like-unlike/ [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	actor := currentUser(c)

	d, liked, err := s.discussionService.ToggleLike(c.UserContext(), actor, id)
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c.UserContext(), notifications.EventDiscussionLiked, map[string]interface{}{
		"discussion_id": d.ID,
		"likes":         d.LikesCount,
		"liked":         liked,
		"user":          actor.ID,
	})

	detail := "You unliked this post."
	if liked {
		detail = "You liked this post!"
	}
	return c.JSON(discussionDetail{Detail: detail, Discussion: d})
}

// AddComment handles POST /forums/:id/add-comment/
// @Summary Comment on a discussion
// @Description A user has one comment per discussion; posting again replaces its content.
// @Tags forums
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Param request body object{content=string} true "Comment"
// @Success 200 {object} models.Discussion
// @Success 201 {object} models.Discussion
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /forums/{id}/add-comment/ [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	actor := currentUser(c)

	comment, created, err := s.discussionService.AddComment(c.UserContext(), actor, id, req.Content)
	if err != nil {
		return respondError(c, err)
	}
	d, err := s.discussionService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	payload := map[string]interface{}{
		"discussion_id": id,
		"comment_id":    comment.ID,
		"user":          actor.ID,
		"created":       created,
	}
	s.publishBroadcastEvent(c.UserContext(), notifications.EventCommentUpserted, payload)
	if d.UserID != actor.ID {
		s.publishUserEvent(c.UserContext(), d.UserID, notifications.EventCommentUpserted, payload)
	}

	if created {
		return c.Status(fiber.StatusCreated).JSON(discussionDetail{Detail: "Comment added!", Discussion: d})
	}
	return c.JSON(discussionDetail{Detail: "Comment updated!", Discussion: d})
}

// DeleteComment handles DELETE /forums/:id/delete-comment/
// @Summary Delete a comment
// @Description The comment id comes from the body, or the comment_id query parameter.
// @Tags forums
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Param request body object{comment_id=int} true "Comment"
// @Success 200 {object} models.Discussion
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /forums/{id}/delete-comment/ [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.CommentID == 0 {
		req.CommentID = uint(c.QueryInt("comment_id", 0))
	}

	if err := s.discussionService.DeleteComment(c.UserContext(), currentUser(c), id, req.CommentID); err != nil {
		return respondError(c, err)
	}
	d, err := s.discussionService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(c.UserContext(), notifications.EventCommentDeleted, map[string]interface{}{
		"discussion_id": id,
		"comment_id":    req.CommentID,
	})
	return c.JSON(discussionDetail{Detail: "Comment has been deleted!", Discussion: d})
}
