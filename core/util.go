package core

import (
	"path"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// HasExt reports whether filename ends with ext, ignoring case. ext includes the dot.
func HasExt(filename, ext string) bool {
	return strings.EqualFold(path.Ext(strings.TrimSpace(filename)), ext)
}
