package utils

import "strings"

func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// IsPlainFilename reports whether s names a single file: non-empty, no
// directory separators, no parent references, no control characters.
func IsPlainFilename(s string) bool {
	if IsEmpty(s) || s == "." || s == ".." {
		return false
	}
	if strings.ContainsAny(s, "/\\") || strings.Contains(s, "..") {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
