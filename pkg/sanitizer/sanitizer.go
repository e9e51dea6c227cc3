// Package sanitizer narrows setup entry names to a safe filesystem-portable
// alphabet and disambiguates names that collide after narrowing.
package sanitizer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SanitizeEntryName replaces every byte outside [A-Za-z0-9.] with an
// underscore, matching the narrowing rule the original setup extractor
// applies to entry names before writing them to disk.
func SanitizeEntryName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}

	return b.String()
}

// ResolveNameConflict returns name unchanged when usageCount is 0. For
// usageCount > 0 it inserts "_N" before the file extension, e.g.
// "photo.jpg" with usageCount 2 becomes "photo_2.jpg", so two entries that
// sanitize to the same name still land at distinct paths. Callers are
// responsible for tracking and incrementing their own usage counts, keyed
// on the sanitized name.
func ResolveNameConflict(name string, usageCount int) string {
	if usageCount == 0 {
		return name
	}

	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]

	return fmt.Sprintf("%s_%d%s", base, usageCount, ext)
}
