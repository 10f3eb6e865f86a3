package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TruncateRunes cuts s to at most n characters without splitting a code point.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Capitalize upper-cases the first letter and lower-cases the rest ("NEGATIVE" -> "Negative").
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
