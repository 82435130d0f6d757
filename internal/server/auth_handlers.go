package server

import (
	"forum/internal/service"

	"github.com/gofiber/fiber/v2"
)

// RegisterRequest is the body of POST /accounts/register/.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// LoginRequest is the body of POST /accounts/login/.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetTokenRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

var statusOK = fiber.Map{"status": "OK"}

// Register handles POST /accounts/register/
// @Summary Register
// @Description Create an account. The email is the login identifier.
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration"
// @Success 201 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /accounts/register/ [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.Register(c.UserContext(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login handles POST /accounts/login/
// @Summary Login
// @Description Exchange credentials for an access/refresh token pair.
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} service.LoginResult
// @Failure 401 {object} models.ErrorResponse
// @Router /accounts/login/ [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// RefreshToken handles POST /accounts/login/refresh-token/
// @Summary Refresh access token
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body object{refresh=string} true "Refresh token"
// @Success 200 {object} object{access=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /accounts/login/refresh-token/ [post]
func (s *Server) RefreshToken(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	access, err := s.authService.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"access": access})
}

// RequestPasswordReset handles POST /accounts/password-reset/
// @Summary Request a password reset email
// @Description Always succeeds for well-formed addresses so accounts cannot be probed.
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Account email"
// @Success 200 {object} object{status=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /accounts/password-reset/ [post]
func (s *Server) RequestPasswordReset(c *fiber.Ctx) error {
	var req resetRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	err := s.authService.RequestPasswordReset(c.UserContext(), service.PasswordResetRequestInput{
		Email:     req.Email,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(statusOK)
}

// ValidateResetToken handles POST /accounts/password-reset/validate_token/
// @Summary Check a password reset token
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body object{token=string} true "Reset token"
// @Success 200 {object} object{status=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/password-reset/validate_token/ [post]
func (s *Server) ValidateResetToken(c *fiber.Ctx) error {
	var req resetTokenRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.ValidateResetToken(c.UserContext(), req.Token); err != nil {
		return respondError(c, err)
	}
	return c.JSON(statusOK)
}

// ConfirmPasswordReset handles POST /accounts/password-reset/confirm/
// @Summary Set a new password with a reset token
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body object{token=string,password=string} true "Token and new password"
// @Success 200 {object} object{status=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/password-reset/confirm/ [post]
func (s *Server) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req resetTokenRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	err := s.authService.ConfirmPasswordReset(c.UserContext(), service.ConfirmPasswordResetInput{
		Token:    req.Token,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(statusOK)
}
