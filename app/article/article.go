package article

import (
	"strings"
)

type Category string

const (
	CategoryGlobal           Category = "Global"
	CategoryThailandSpecific Category = "ThailandSpecific"
)

// Order is the delivery order of digest sections.
var Order = []Category{CategoryThailandSpecific, CategoryGlobal}

// legacyThailand is the label used by older prompts and stored rows.
const legacyThailand = "Thailand-specific"

func (c Category) Valid() bool {
	return c == CategoryGlobal || c == CategoryThailandSpecific
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory maps an AI or stored label to a Category.
func ParseCategory(raw string) (Category, bool) {
	switch strings.TrimSpace(raw) {
	case string(CategoryGlobal):
		return CategoryGlobal, true
	case string(CategoryThailandSpecific), legacyThailand:
		return CategoryThailandSpecific, true
	default:
		return "", false
	}
}

// IsHTTPURL reports whether link starts with an http:// or https:// scheme.
func IsHTTPURL(link string) bool {
	lower := strings.ToLower(strings.TrimSpace(link))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
