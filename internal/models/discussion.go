package models

import (
	"strings"
	"time"
)

// Discussion categories.
const (
	CategoryFinTech        = "FinTech"
	CategoryHealthTech     = "HealthTech"
	CategoryInsuranceTech  = "InsuranceTech"
	CategoryAutomobileTech = "AutomobileTech"
	CategoryInternet       = "Internet"
	CategoryEduTech        = "EduTech"
	CategoryGaming         = "Gaming"
	CategoryWearables      = "Wearables"
	CategoryOpenSource     = "OpenSource"
	CategoryOthers         = "Others"
)

// Categories lists every accepted discussion category.
var Categories = []string{
	CategoryFinTech,
	CategoryHealthTech,
	CategoryInsuranceTech,
	CategoryAutomobileTech,
	CategoryInternet,
	CategoryEduTech,
	CategoryGaming,
	CategoryWearables,
	CategoryOpenSource,
	CategoryOthers,
}

// Field limits.
const (
	MaxTitleLen    = 130
	MaxCategoryLen = 25
	MaxTagsLen     = 70
	MaxSlugLen     = 150
)

// IsValidCategory reports whether c is one of Categories.
func IsValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Discussion is a forum thread. Slug is derived from the title once and never changes.
type Discussion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Title     string    `gorm:"size:130;not null" json:"title"`
	Slug      string    `gorm:"size:150;uniqueIndex;not null" json:"slug"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Img       string    `gorm:"size:255" json:"img"`
	Category  string    `gorm:"size:25;not null;default:Others" json:"category"`
	Tags      string    `gorm:"size:70" json:"tags"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Comments is populated on reads; deleted with the discussion.
	Comments []Comment `gorm:"foreignKey:DiscussionID;constraint:OnDelete:CASCADE" json:"comments"`
	// LikesCount is computed at query time.
	LikesCount int64 `gorm:"-" json:"likes"`
}

// TagList splits the comma-separated tags into trimmed, non-empty entries.
func (d *Discussion) TagList() []string {
	var out []string
	for _, t := range strings.Split(d.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// DiscussionLike records that a user likes a discussion. The pair is the primary key.
type DiscussionLike struct {
	DiscussionID uint        `gorm:"primaryKey" json:"discussion"`
	UserID       uint        `gorm:"primaryKey;index" json:"user"`
	CreatedAt    time.Time   `json:"created_at"`
	Discussion   *Discussion `gorm:"foreignKey:DiscussionID;constraint:OnDelete:CASCADE" json:"-"`
	User         *User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName pins the join table name.
func (DiscussionLike) TableName() string {
	return "discussion_likes"
}
