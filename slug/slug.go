package slug

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength bounds generated slugs
const MaxLength = 100

var (
	nonSlugChars = regexp.MustCompile("[^a-z0-9-]+")
	hyphenRuns   = regexp.MustCompile("-+")
)

// Generate creates a URL-friendly slug from a string
func Generate(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)

	// Transliterate unicode to ASCII
	s = transliterate(s)

	// Separators become hyphens
	s = strings.NewReplacer(" ", "-", "_", "-", "/", "-", ".", "-").Replace(s)

	s = nonSlugChars.ReplaceAllString(s, "")
	s = hyphenRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > MaxLength {
		s = s[:MaxLength]
		s = strings.TrimRight(s, "-")
	}

	return s
}

// GenerateWithFallback generates a slug, falling back to a default if the input produces an empty slug
func GenerateWithFallback(s, fallback string) string {
	slug := Generate(s)
	if slug == "" {
		return Generate(fallback)
	}
	return slug
}

// transliterate strips diacritics so "é" becomes "e"
func transliterate(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// isMn checks if a rune is a nonspacing mark (accents, diacritics)
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// MakeUnique appends a counter to a slug
func MakeUnique(slug string, counter int) string {
	if counter <= 0 {
		return slug
	}
	return slug + "-" + strconv.Itoa(counter)
}

// FromURL builds a slug from a page URL's host and path, dropping the
// scheme, a leading "www." and any query or fragment
func FromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return Generate(rawURL)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.TrimSuffix(u.Path, "/")

	// Remove file extension from the last segment
	if idx := strings.LastIndex(path, "."); idx != -1 && idx > strings.LastIndex(path, "/") {
		path = path[:idx]
	}

	return Generate(host + path)
}

// ForSnapshot picks a title-based slug when the title yields one and
// falls back to the URL
func ForSnapshot(title, rawURL string) string {
	if title != "" {
		if s := Generate(title); s != "" {
			return s
		}
	}
	return FromURL(rawURL)
}
