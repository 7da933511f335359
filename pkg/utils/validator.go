package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	unsafeInName  = regexp.MustCompile(`[^A-Za-z0-9._\- ]+`)
	repeatedSpace = regexp.MustCompile(`\s+`)
	unsafeFolder  = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
)

// SanitizeString removes control characters and trims surrounding space
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// SanitizeFileName reduces a client supplied file name to a safe base name.
// Directory components are dropped. An empty result becomes "upload".
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(SanitizeString(name))
	name = unsafeInName.ReplaceAllString(name, "_")
	name = repeatedSpace.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")
	if name == "" || name == "_" {
		return "upload"
	}
	return name
}

// NormalizeExtension returns the lower-cased extension of name, including the dot
func NormalizeExtension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// SanitizeFolderName reduces an identifier to a single safe path segment.
// Only letters, digits, hyphens and underscores survive; an empty result
// becomes "_".
func SanitizeFolderName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = unsafeFolder.ReplaceAllString(name, "")
	if name == "" {
		return "_"
	}
	return name
}
