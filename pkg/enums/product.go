package enums

import (
	"errors"
	"slices"
)

// ProductCategory represents the catalog categories the shop sells.
type ProductCategory string

const (
	ProductCategoryTumblers ProductCategory = "Tumblers"
	ProductCategoryCeramics ProductCategory = "Ceramics"
)

var validProductCategories = []ProductCategory{
	ProductCategoryTumblers,
	ProductCategoryCeramics,
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCategory.
func (c ProductCategory) IsValid() bool {
	return slices.Contains(validProductCategories, c)
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	if c := ProductCategory(value); c.IsValid() {
		return c, nil
	}
	return "", errors.New("Category must be one of: Tumblers, Ceramics")
}

// ProductSort names the supported catalog orderings.
type ProductSort string

const (
	ProductSortNewest     ProductSort = "newest"
	ProductSortPriceAsc   ProductSort = "price_asc"
	ProductSortPriceDesc  ProductSort = "price_desc"
	ProductSortRating     ProductSort = "rating"
	ProductSortPopularity ProductSort = "popularity"
)

var validProductSorts = []ProductSort{
	ProductSortNewest,
	ProductSortPriceAsc,
	ProductSortPriceDesc,
	ProductSortRating,
	ProductSortPopularity,
}

func (s ProductSort) String() string {
	return string(s)
}

func (s ProductSort) IsValid() bool {
	return slices.Contains(validProductSorts, s)
}

// ParseProductSort accepts an empty value as newest.
func ParseProductSort(value string) (ProductSort, error) {
	if value == "" {
		return ProductSortNewest, nil
	}
	return parse("product sort", validProductSorts, value)
}
