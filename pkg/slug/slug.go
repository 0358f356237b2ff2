package slug

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Generate creates a URL-friendly slug from a display name.
//
//	"Home & Kitchen"        -> "home-kitchen"
//	"Beauty & Personal Care" -> "beauty-personal-care"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
