// Package models contains data structures for the forum's domain models.
package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is a forum account. Email is the login identifier.
type User struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Email       string       `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Username    string       `gorm:"size:150" json:"username"`
	FirstName   string       `gorm:"size:100" json:"first_name"`
	LastName    string       `gorm:"size:100" json:"last_name"`
	Password    string       `gorm:"not null" json:"-"`
	IsVerified  bool         `gorm:"not null;default:false" json:"is_verified"`
	IsStaff     bool         `gorm:"not null;default:false" json:"is_staff"`
	IsSuperuser bool         `gorm:"not null;default:false" json:"is_superuser"`
	IsActive    bool         `gorm:"not null;default:true" json:"is_active"`
	LastLogin   *time.Time   `json:"last_login"`
	DateJoined  time.Time    `gorm:"autoCreateTime" json:"date_joined"`
	Profile     *UserProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}

// NormalizeEmail lower-cases the domain part of an address and trims whitespace.
// The local part is kept as given.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// SetPassword hashes raw and stores the hash. It is the only way a password is written.
func (u *User) SetPassword(raw string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

// CheckPassword reports whether raw matches the stored hash.
func (u *User) CheckPassword(raw string) bool {
	if u.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(raw)) == nil
}

// IsAdmin reports whether the user has unrestricted access to user resources.
func (u *User) IsAdmin() bool {
	return u != nil && u.IsSuperuser
}
