package tui

import (
	"os"
	"strconv"
	"strings"
	"unicode"
)

var (
	// DefaultMaxLabelSize is the number of runes kept from a remote-provided label.
	DefaultMaxLabelSize = 120
	// EnvMaxLabelSize is the environment variable to override the default
	EnvMaxLabelSize = "ARGVIEW_MAX_LABEL_SIZE"
)

// SanitizeLabel makes a remote-provided id or tooltip safe to print on one
// terminal line. Invalid UTF-8 is replaced, whitespace controls become spaces,
// other control characters (ESC, NULL, BEL) are dropped and long labels are
// truncated with an ellipsis.
// This prevents terminal corruption by a misbehaving remote.
func SanitizeLabel(s string) string {
	s = strings.ToValidUTF8(s, "�")

	// Fast path: if no control chars, only the length may change.
	clean := true
	for _, r := range s {
		if unicode.IsControl(r) {
			clean = false
			break
		}
	}
	if !clean {
		var b strings.Builder
		b.Grow(len(s))
		for _, r := range s {
			switch {
			case r == '\n' || r == '\t' || r == '\r':
				b.WriteRune(' ')
			case unicode.IsControl(r):
			default:
				b.WriteRune(r)
			}
		}
		s = b.String()
	}

	limit := maxLabelSize()
	if runes := []rune(s); len(runes) > limit {
		s = string(runes[:limit-1]) + "…"
	}
	return s
}

func maxLabelSize() int {
	if val := os.Getenv(EnvMaxLabelSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 1 {
			return size
		}
	}
	return DefaultMaxLabelSize
}
