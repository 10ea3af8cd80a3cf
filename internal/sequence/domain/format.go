package domain

import (
	"fmt"
	"strings"
)

// Format renders prefix followed by value zero-padded to width. Values wider
// than width are rendered in full.
func Format(prefix string, width int, value uint64) string {
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%s%0*d", prefix, width, value)
}

// HasPrefix reports whether id looks like it was issued for prefix.
func HasPrefix(id, prefix string) bool {
	return prefix != "" && strings.HasPrefix(id, prefix)
}
