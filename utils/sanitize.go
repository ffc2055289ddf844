package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Free text from check-ins is stored as plain text, so every tag is stripped.
var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips markup from user supplied text and trims surrounding whitespace.
func Sanitize(input string) string {
	return strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(input)))
}

// SanitizeOptional sanitizes a nullable text field; blank input becomes nil.
func SanitizeOptional(input *string) *string {
	if input == nil {
		return nil
	}
	clean := Sanitize(*input)
	if clean == "" {
		return nil
	}
	return &clean
}
