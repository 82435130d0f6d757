package validation

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	plainPolicy = bluemonday.StrictPolicy()
	richPolicy  = bluemonday.UGCPolicy()
)

// SanitizePlain strips all markup from single-line fields such as titles, tags and names.
func SanitizePlain(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(s)))
}

// SanitizeRich keeps safe formatting in discussion bodies and comments and drops scripts,
// event handlers and unsafe links.
func SanitizeRich(s string) string {
	return strings.TrimSpace(richPolicy.Sanitize(s))
}
