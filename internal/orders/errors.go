package orders

import (
	"errors"
	"fmt"

	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
)

// ErrVersionConflict is returned by Save when the row moved past the version
// the caller loaded.
var ErrVersionConflict = errors.New("order version conflict")

func ErrEmptyOrder() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "Order must contain at least one item")
}

func ErrInvalidQuantity(index int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "Item quantity must be at least 1").
		WithDetails(map[string]string{fmt.Sprintf("items[%d].quantity", index): "must be at least 1"})
}

func ErrOrderNotCancellable() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "Order cannot be cancelled in current status")
}

func ErrOrderNotRefundable() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "Order cannot be refunded in current status")
}

func ErrRefundThroughStatus() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "Use the refund action to refund an order")
}

func ErrIllegalTransition(from, to enums.OrderStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("Cannot change order status from %s to %s", from, to)).
		WithDetails(map[string]string{"from": from.String(), "to": to.String()})
}

func errStale() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, "Order was modified by another request, please retry")
}
