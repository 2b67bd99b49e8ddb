package utils

import "github.com/microcosm-cc/bluemonday"

// Admin-entered free text (group and rule descriptions, adjustment reasons)
// is stored plain; nothing here renders HTML, so strip all markup.
var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips any HTML from user-provided text.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
