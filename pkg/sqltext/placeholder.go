package sqltext

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// NewPlaceholder returns a fresh opaque token of the form {uuid}. Tokens
// contain no quotes, brackets, whitespace or SQL keywords, so no rewrite
// rule matches inside one.
func NewPlaceholder() string {
	return "{" + uuid.NewString() + "}"
}

// IsPlaceholder reports whether s is a token produced by NewPlaceholder.
func IsPlaceholder(s string) bool {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return false
	}
	_, err := uuid.Parse(s[1 : len(s)-1])
	return err == nil
}

// ReplaceFold replaces every case-insensitive occurrence of old in s with
// repl. repl is inserted literally.
func ReplaceFold(s, old, repl string) string {
	if old == "" {
		return s
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(old))
	return re.ReplaceAllLiteralString(s, repl)
}

// ContainsFold reports whether substr occurs in s ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
