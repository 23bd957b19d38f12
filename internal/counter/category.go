package counter

import "fmt"

type Category string

const (
	CategoryRestaurant  Category = "Restaurant"
	CategorySelfService Category = "Self Service"
	CategoryTempleMeals Category = "Temple Meals"
)

// Categories lists the billing channels in display order.
var Categories = []Category{CategoryRestaurant, CategorySelfService, CategoryTempleMeals}

// kotCategory is the row that carries the branch-wide KOT sequence.
const kotCategory = CategoryRestaurant

func (c Category) Valid() bool {
	switch c {
	case CategoryRestaurant, CategorySelfService, CategoryTempleMeals:
		return true
	}
	return false
}

// ParseCategory accepts only the exact labels, with no case folding or
// trimming.
func ParseCategory(value string) (Category, error) {
	c := Category(value)
	if !c.Valid() {
		return "", newError(CodeInvalidCategory, fmt.Sprintf("invalid category %q, must be one of Restaurant, Self Service, Temple Meals", value), nil)
	}
	return c, nil
}

func categoryOrder(c Category) int {
	for i, known := range Categories {
		if known == c {
			return i
		}
	}
	return len(Categories)
}
