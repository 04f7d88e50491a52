package artifact

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultSlugLength caps slugs when no limit is configured.
const DefaultSlugLength = 80

// Slug prefixes of the social post kinds.
const (
	ProfessionalPrefix = "linkedin-"
	MicroPrefix        = "twitter-"
)

// IsSocialSlug reports whether slug names a professional or micro post.
func IsSocialSlug(slug string) bool {
	return strings.HasPrefix(slug, ProfessionalPrefix) || strings.HasPrefix(slug, MicroPrefix)
}

// Slugify lowercases s, folds accents, collapses every run of characters outside
// [a-z0-9] into a single '-', and caps the result at max bytes without a
// trailing separator.
func Slugify(s string, max int) string {
	if max <= 0 {
		max = DefaultSlugLength
	}

	var b strings.Builder
	sep := false
	for _, r := range norm.NFKD.String(strings.ToLower(s)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < utf8.RuneSelf && (('a' <= r && r <= 'z') || ('0' <= r && r <= '9')):
			if sep && b.Len() > 0 {
				b.WriteByte('-')
			}
			sep = false
			b.WriteRune(r)
		default:
			sep = true
		}
	}

	slug := b.String()
	if len(slug) > max {
		slug = slug[:max]
	}
	return strings.Trim(slug, "-")
}

// ValidSlug reports whether s is safe to use as a file name in a content directory.
func ValidSlug(s string) bool {
	if s == "" || len(s) > 255 {
		return false
	}
	for _, r := range s {
		if !(r == '-' || r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')) {
			return false
		}
	}
	return true
}
