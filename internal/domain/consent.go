package domain

import "time"

// ConsentCategory names a class of data processing the user can allow.
type ConsentCategory string

const (
	ConsentEssential ConsentCategory = "essential"
	ConsentAnalytics ConsentCategory = "analytics"
	ConsentMarketing ConsentCategory = "marketing"
)

// ConsentRecord is the user's explicit processing choice. Essential is always true.
type ConsentRecord struct {
	Essential bool      `json:"essential"`
	Analytics bool      `json:"analytics"`
	Marketing bool      `json:"marketing"`
	Timestamp time.Time `json:"timestamp"`
}

// Allows reports whether the record permits the category.
func (r ConsentRecord) Allows(c ConsentCategory) bool {
	switch c {
	case ConsentEssential:
		return true
	case ConsentAnalytics:
		return r.Analytics
	case ConsentMarketing:
		return r.Marketing
	default:
		return false
	}
}
