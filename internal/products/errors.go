package product

import (
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
)

const slugIndex = "ux_products_slug"

func ErrProductNotFound() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "No product found with that ID or slug")
}

func ErrImageRequired() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "At least one product image is required")
}

func ErrSlugTaken(slug string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, "A product with this name already exists").
		WithDetails(map[string]any{"slug": slug})
}
