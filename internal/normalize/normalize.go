// Package normalize holds the canonical forms used for storage and comparison.
package normalize

import "strings"

// Pagination defaults and bounds for thread listings.
const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 100
)

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Page clamps page/limit query values and returns them with the number of
// documents to skip. Non-positive values fall back to the defaults.
func Page(page, limit int) (int, int, int64) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit, int64(page-1) * int64(limit)
}

// Pages returns how many pages of size limit are needed for total items.
func Pages(total int64, limit int) int64 {
	if limit < 1 || total <= 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
