package models

import "time"

// Comment on a discussion. A user has at most one comment per discussion.
type Comment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_comment_user_discussion" json:"user"`
	DiscussionID uint      `gorm:"not null;uniqueIndex:idx_comment_user_discussion;index" json:"post"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	User         *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
