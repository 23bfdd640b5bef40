package dae

import "strings"

const (
	alphaNum = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// Unreserved URI characters.
	Unreserved = alphaNum + "-._~"
	// FilenameAllowed keeps path separators, drive letters and existing escapes intact.
	FilenameAllowed = alphaNum + "%-._~:\"|\\/"
)

// Escape percent-encodes every byte of s not in allowed.
func Escape(s, allowed string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(allowed, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

// EscapeFilename converts a native path to the URI form used for the document location.
func EscapeFilename(path string) string {
	return Escape(path, FilenameAllowed)
}
