package domain

import "strings"

type Category string

const (
	CategoryFruits     Category = "Fruits"
	CategoryVegetables Category = "Vegetables"
	CategoryDairy      Category = "Dairy"
	CategoryMeat       Category = "Meat"
	CategoryFish       Category = "Fish"
	CategoryGrains     Category = "Grains"
	CategorySnacks     Category = "Snacks"
	CategoryBeverages  Category = "Beverages"
	CategoryFrozen     Category = "Frozen"
	CategoryCondiments Category = "Condiments"
	CategoryOther      Category = "Other"
)

var Categories = []Category{
	CategoryFruits,
	CategoryVegetables,
	CategoryDairy,
	CategoryMeat,
	CategoryFish,
	CategoryGrains,
	CategorySnacks,
	CategoryBeverages,
	CategoryFrozen,
	CategoryCondiments,
	CategoryOther,
}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, nil
		}
	}
	return "", &ValidationError{Field: "category", Reason: "unknown category " + s}
}

func (c Category) Equal(o Category) bool {
	return strings.EqualFold(string(c), string(o))
}
