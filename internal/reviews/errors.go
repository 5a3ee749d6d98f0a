package reviews

import (
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
)

const productUserIndex = "ux_reviews_product_user"

func ErrReviewNotFound() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "No review found with that ID")
}

func ErrAlreadyReviewed() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, "You have already reviewed this product")
}

func ErrNotAuthor() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeForbidden, "You can only change your own reviews")
}
