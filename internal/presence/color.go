// Package presence holds the per-user cursor helpers used by the board hub.
package presence

import "unicode/utf16"

// CursorColors is the palette cursors are painted from.
var CursorColors = [...]string{ //nolint:gochecknoglobals // fixed palette
	"#ef4444",
	"#f97316",
	"#eab308",
	"#22c55e",
	"#06b6d4",
	"#3b82f6",
	"#8b5cf6",
	"#ec4899",
}

// AnonymousName is shown for users without a display name.
const AnonymousName = "Anonymous"

// Color returns the stable cursor colour for userID. The hash is the classic
// 32-bit hash*31+c over UTF-16 code units, so every client computes the same
// colour for a user without coordination.
func Color(userID string) string {
	var hash int32
	for _, c := range utf16.Encode([]rune(userID)) {
		hash = hash*31 + int32(c)
	}
	h := int64(hash)
	if h < 0 {
		h = -h
	}
	return CursorColors[h%int64(len(CursorColors))]
}

// DisplayName falls back to AnonymousName for blank names.
func DisplayName(name string) string {
	if name == "" {
		return AnonymousName
	}
	return name
}
