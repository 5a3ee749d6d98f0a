package product

import (
	"github.com/shopspring/decimal"

	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/pagination"
)

// ListFilters describe the supported filter knobs for the browse endpoint.
// Prices compare against the effective price.
type ListFilters struct {
	Category *enums.ProductCategory
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Tags     []string
	Featured *bool
	Query    string
}

// ListInput pages the catalog. Newest-first listings walk a keyset cursor;
// every other ordering uses page numbers.
type ListInput struct {
	Filters ListFilters
	Sort    enums.ProductSort
	Cursor  pagination.Params
	Page    pagination.Page
}

// ProductList is one page of active products.
type ProductList struct {
	Products   []ProductDTO         `json:"products"`
	NextCursor string               `json:"nextCursor,omitempty"`
	Meta       *pagination.PageMeta `json:"meta,omitempty"`
}
