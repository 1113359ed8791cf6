package domain

import (
	"fmt"
	"strings"
)

// Category identifies the kind of item being priced
type Category string

const (
	CategoryMobile    Category = "mobile"
	CategoryLaptop    Category = "laptop"
	CategoryFurniture Category = "furniture"
)

// AllCategories returns every supported category in a stable order
func AllCategories() []Category {
	return []Category{CategoryMobile, CategoryLaptop, CategoryFurniture}
}

// ParseCategory normalizes a category tag and rejects unknown values
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Valid reports whether c is one of the supported categories
func (c Category) Valid() bool {
	switch c {
	case CategoryMobile, CategoryLaptop, CategoryFurniture:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
