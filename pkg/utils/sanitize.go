package utils

import (
	"regexp"
	"strings"
)

// --- Filename Helpers ---
var pathSeparatorChars = regexp.MustCompile(`[/\\\x00]`) // Characters that would split a name into path segments
var consecutiveUnderscores = regexp.MustCompile(`_+`)    // Pattern to replace multiple underscores with one

// CollapseUnderscores replaces every run of consecutive underscores with a single one
func CollapseUnderscores(name string) string {
	return consecutiveUnderscores.ReplaceAllString(name, "_")
}

// FlattenPathComponent makes s safe to use as a single path element by
// replacing directory separators (and NUL) with underscores.
func FlattenPathComponent(s string) string {
	return pathSeparatorChars.ReplaceAllString(s, "_")
}

// HasHTTPScheme reports whether rawURL starts with an absolute http or https scheme
func HasHTTPScheme(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsHTMLFileName reports whether name carries one of the export extensions (.htm, .html)
func IsHTMLFileName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm")
}
