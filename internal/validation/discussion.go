package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"forum/internal/models"
)

// ValidateTitle requires a non-blank title within the column limit.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(title) > models.MaxTitleLen {
		return fmt.Errorf("title must not exceed %d characters", models.MaxTitleLen)
	}
	return nil
}

// ValidateContent requires non-blank content.
func ValidateContent(field, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// ValidateCategory accepts one of models.Categories.
func ValidateCategory(category string) error {
	if !models.IsValidCategory(category) {
		return fmt.Errorf("%q is not a valid choice", category)
	}
	return nil
}

// ValidateTags checks the comma-separated tag string length.
func ValidateTags(tags string) error {
	if utf8.RuneCountInString(tags) > models.MaxTagsLen {
		return fmt.Errorf("tags must not exceed %d characters", models.MaxTagsLen)
	}
	return nil
}
