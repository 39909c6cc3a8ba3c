package storefront

import "strings"

// NormalizeTitle lowers the case and strips every non-alphanumeric rune.
// The result is the canonical join key for cross-platform comparison.
// Normalizing an already-normalized title returns it unchanged.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TitlesMatch reports whether two titles refer to the same game. This is an
// exact-match join over normalized titles, not fuzzy matching; near-misses
// like "Marvel's Spider-Man" vs "Spider-Man" are an accepted false negative.
func TitlesMatch(a, b string) bool {
	na := NormalizeTitle(a)
	if na == "" {
		return false
	}
	return na == NormalizeTitle(b)
}
