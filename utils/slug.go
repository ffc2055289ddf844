package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewSlug returns a short random lowercase identifier for sprint URLs.
func NewSlug() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:6]
}
