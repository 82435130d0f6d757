package server

import (
	"forum/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UpdateUserRequest is the body of PATCH /accounts/dashboard/:id/. Absent fields are left alone.
type UpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Username  *string `json:"username"`
}

// GetDashboard handles GET /accounts/dashboard/
// @Summary Dashboard
// @Description Regular users get their own account with a discussion count; superusers get every account, paginated.
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} service.DashboardUser
// @Failure 401 {object} models.ErrorResponse
// @Router /accounts/dashboard/ [get]
func (s *Server) GetDashboard(c *fiber.Ctx) error {
	actor := currentUser(c)

	if !actor.IsAdmin() {
		summary, err := s.userService.Summary(c.UserContext(), actor)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(summary)
	}

	page := parsePagination(c)
	users, total, err := s.userService.ListAll(c.UserContext(), actor, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newPage(c, page, total, users))
}

// GetDashboardUser handles GET /accounts/dashboard/:id/
// @Summary Get an account
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/dashboard/{id}/ [get]
func (s *Server) GetDashboardUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.Retrieve(c.UserContext(), currentUser(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateDashboardUser handles PATCH /accounts/dashboard/:id/
// @Summary Update an account
// @Description Only first_name, last_name and username can change. Other accounts are reported as missing.
// @Tags dashboard
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body UpdateUserRequest true "Fields to change"
// @Success 200 {object} service.UserUpdate
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/dashboard/{id}/ [patch]
func (s *Server) UpdateDashboardUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req UpdateUserRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	updated, err := s.userService.Update(c.UserContext(), currentUser(c), service.UpdateUserInput{
		TargetID:  id,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

// DeleteDashboardUser handles DELETE /accounts/dashboard/:id/
// @Summary Delete an account
// @Description Removes the account with its profile, discussions, comments and likes.
// @Tags dashboard
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/dashboard/{id}/ [delete]
func (s *Server) DeleteDashboardUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.userService.Delete(c.UserContext(), currentUser(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
