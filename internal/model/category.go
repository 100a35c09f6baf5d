package model

import (
	"fmt"
	"strings"
)

// Category is the reservation class an applicant competes under.  Each
// course keeps a separate seat counter per category.
type Category string

const (
	CategoryGeneral Category = "General"
	CategoryOBC     Category = "OBC"
	CategorySC      Category = "SC"
	CategoryST      Category = "ST"
	CategoryEWS     Category = "EWS"
)

// Categories returns every category in the fixed column order used by the
// courses table.
func Categories() []Category {
	return []Category{CategoryGeneral, CategoryOBC, CategorySC, CategoryST, CategoryEWS}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryOBC, CategorySC, CategoryST, CategoryEWS:
		return true
	}
	return false
}

// ParseCategory converts free text (case-insensitive) into a Category.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}
