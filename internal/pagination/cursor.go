// Package pagination implements the {page, limit} cursor shared by every
// paginated listing and a small stream type that accumulates pages.
package pagination

// DefaultLimit is the page size used when none is configured.
const DefaultLimit = 100

// Cursor identifies one page of a paginated listing.
type Cursor struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// First returns the cursor of the first page. Non-positive limits fall back
// to DefaultLimit.
func First(limit int) Cursor {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Cursor{Page: 0, Limit: limit}
}

// Next returns the cursor following a page that yielded lastLen items.
// A page shorter than the limit is the last one.
func (c Cursor) Next(lastLen int) (Cursor, bool) {
	if lastLen < c.Limit {
		return Cursor{}, false
	}
	return Cursor{Page: c.Page + 1, Limit: c.Limit}, true
}
