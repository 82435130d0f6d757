package service

import (
	"strings"

	"forum/internal/models"
	"forum/internal/validation"
)

// NewUserInput carries the fields accepted when creating an account.
type NewUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Username  string
}

// UserFactory builds validated, normalized users with hashed passwords.
// It does not persist anything.
type UserFactory struct{}

// NewUserFactory returns a UserFactory.
func NewUserFactory() *UserFactory {
	return &UserFactory{}
}

// NewUser returns a regular active account.
func (f *UserFactory) NewUser(in NewUserInput) (*models.User, error) {
	email := models.NormalizeEmail(in.Email)
	if email == "" {
		return nil, models.NewValidationError("Users must have an email address")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Password == "" {
		return nil, models.NewValidationError("password is required")
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	username := strings.TrimSpace(in.Username)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	firstName := validation.SanitizePlain(in.FirstName)
	lastName := validation.SanitizePlain(in.LastName)
	if err := validation.ValidateName("first_name", firstName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateName("last_name", lastName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	user := &models.User{
		Email:     email,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		IsActive:  true,
		Profile:   &models.UserProfile{},
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, models.NewInternalError(err)
	}
	return user, nil
}

// NewSuperuser returns an account with staff and superuser flags set.
func (f *UserFactory) NewSuperuser(in NewUserInput) (*models.User, error) {
	user, err := f.NewUser(in)
	if err != nil {
		return nil, err
	}
	user.IsStaff = true
	user.IsSuperuser = true
	return user, nil
}
