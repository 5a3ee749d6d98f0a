package orders

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
)

const placedNote = "Order placed"

// legalTransitions is the status graph enforced in strict mode. Refunded is
// absent on purpose: only Refund reaches it.
var legalTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered, enums.OrderStatusReturned},
	enums.OrderStatusDelivered:  {enums.OrderStatusReturned},
}

// CanTransition reports whether from -> to is in the strict status graph.
func CanTransition(from, to enums.OrderStatus) bool {
	return slices.Contains(legalTransitions[from], to)
}

// Cancellable orders have not left the warehouse yet.
func Cancellable(o *models.Order) bool {
	return o.Status == enums.OrderStatusPending || o.Status == enums.OrderStatusConfirmed
}

func Refundable(o *models.Order) bool {
	return o.Status == enums.OrderStatusDelivered && o.PaymentStatus == enums.PaymentStatusPaid
}

// IsCompleted reports whether the order has reached an end state.
func IsCompleted(o *models.Order) bool {
	return o.Status == enums.OrderStatusDelivered || o.Status.IsTerminal()
}

func ItemsCount(o *models.Order) int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

func AgeInDays(o *models.Order, now time.Time) int {
	if o.CreatedAt.IsZero() || now.Before(o.CreatedAt) {
		return 0
	}
	return int(now.Sub(o.CreatedAt).Hours() / 24)
}

// Recompute derives line totals, subtotal and total from the items and the
// three adjustments. Calling it twice yields the same result.
func Recompute(o *models.Order) {
	subtotal := decimal.Zero
	for i := range o.Items {
		item := &o.Items[i]
		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		subtotal = subtotal.Add(item.LineTotal)
	}
	o.Subtotal = subtotal
	o.Total = subtotal.Add(o.TaxAmount).Add(o.ShippingCost).Sub(o.DiscountAmount)
}

// Lifecycle applies status changes and their timeline entries to an order
// held in memory. Persistence is the caller's job.
type Lifecycle struct {
	strict bool
	now    func() time.Time
}

func NewLifecycle(strict bool) *Lifecycle {
	return &Lifecycle{strict: strict, now: time.Now}
}

// Start puts a freshly built order in pending state with its first entry.
func (l *Lifecycle) Start(o *models.Order, actor *uuid.UUID) {
	o.Status = enums.OrderStatusPending
	o.PaymentStatus = enums.PaymentStatusPending
	if o.Currency == "" {
		o.Currency = models.DefaultCurrency
	}
	if o.Version == 0 {
		o.Version = 1
	}
	o.Timeline = nil
	l.appendEntry(o, enums.OrderStatusPending, placedNote, actor)
	Recompute(o)
}

// Transition moves the order to status to and returns the previous status.
func (l *Lifecycle) Transition(o *models.Order, to enums.OrderStatus, note string, actor *uuid.UUID) (enums.OrderStatus, error) {
	from := o.Status
	if !to.IsValid() {
		return from, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", to))
	}
	if from == to {
		return from, ErrIllegalTransition(from, to)
	}
	// Both guards hold in either mode.
	switch {
	case to == enums.OrderStatusRefunded:
		return from, ErrRefundThroughStatus()
	case to == enums.OrderStatusCancelled && !Cancellable(o):
		return from, ErrOrderNotCancellable()
	}
	if l.strict && !CanTransition(from, to) {
		return from, ErrIllegalTransition(from, to)
	}

	at := l.stamp(o)
	note = strings.TrimSpace(note)
	switch to {
	case enums.OrderStatusCancelled:
		o.CancelledAt = &at
		o.CancelledBy = actor
	case enums.OrderStatusDelivered:
		o.ActualDelivery = &at
	case enums.OrderStatusShipped:
		if note == "" && o.TrackingNumber != nil && *o.TrackingNumber != "" {
			note = "Order shipped with tracking number: " + *o.TrackingNumber
		}
	}
	if note == "" {
		note = fmt.Sprintf("Status changed from %s to %s", from, to)
	}

	o.Status = to
	o.Timeline = append(o.Timeline, models.TimelineEntry{Status: to, Timestamp: at, Note: note, UpdatedBy: actor})
	Recompute(o)
	return from, nil
}

func (l *Lifecycle) Cancel(o *models.Order, reason string, actor *uuid.UUID) error {
	if !Cancellable(o) {
		return ErrOrderNotCancellable()
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required")
	}
	at := l.stamp(o)
	o.Status = enums.OrderStatusCancelled
	o.CancellationReason = &reason
	o.CancelledAt = &at
	o.CancelledBy = actor
	o.Timeline = append(o.Timeline, models.TimelineEntry{
		Status:    enums.OrderStatusCancelled,
		Timestamp: at,
		Note:      "Order cancelled. Reason: " + reason,
		UpdatedBy: actor,
	})
	Recompute(o)
	return nil
}

// Refund returns the refunded amount, which defaults to the order total.
func (l *Lifecycle) Refund(o *models.Order, amount *decimal.Decimal, reason string, actor *uuid.UUID) (decimal.Decimal, error) {
	if !Refundable(o) {
		return decimal.Zero, ErrOrderNotRefundable()
	}
	Recompute(o)
	refund := o.Total
	if amount != nil {
		if !amount.IsPositive() {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
		}
		if amount.GreaterThan(o.Total) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "refund amount cannot exceed the order total")
		}
		refund = *amount
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "refund reason is required")
	}

	at := l.stamp(o)
	o.Status = enums.OrderStatusRefunded
	if refund.GreaterThanOrEqual(o.Total) {
		o.PaymentStatus = enums.PaymentStatusRefunded
	} else {
		o.PaymentStatus = enums.PaymentStatusPartiallyRefunded
	}
	o.RefundReason = &reason
	o.RefundedAt = &at
	o.RefundedBy = actor
	o.PaymentDetails.RefundAmount = &refund
	o.PaymentDetails.RefundedAt = &at
	o.Timeline = append(o.Timeline, models.TimelineEntry{
		Status:    enums.OrderStatusRefunded,
		Timestamp: at,
		Note:      fmt.Sprintf("Order refunded. Amount: $%s. Reason: %s", refund.StringFixed(2), reason),
		UpdatedBy: actor,
	})
	return refund, nil
}

// MarkPaid merges provider details and flags the payment; the status is
// left alone.
func (l *Lifecycle) MarkPaid(o *models.Order, details models.PaymentDetails, actor *uuid.UUID) error {
	switch {
	case o.PaymentStatus == enums.PaymentStatusPaid:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "Order is already paid")
	case o.Status == enums.OrderStatusCancelled || o.Status == enums.OrderStatusRefunded:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "Cannot take payment for a "+o.Status.String()+" order")
	}
	at := l.stamp(o)
	merged := o.PaymentDetails
	if details.TransactionID != nil {
		merged.TransactionID = details.TransactionID
	}
	if details.PaymentIntentID != nil {
		merged.PaymentIntentID = details.PaymentIntentID
	}
	if details.Last4 != nil {
		merged.Last4 = details.Last4
	}
	if details.Brand != nil {
		merged.Brand = details.Brand
	}
	merged.PaidAt = &at
	o.PaymentDetails = merged
	o.PaymentStatus = enums.PaymentStatusPaid
	o.Timeline = append(o.Timeline, models.TimelineEntry{Status: o.Status, Timestamp: at, Note: "Payment confirmed", UpdatedBy: actor})
	Recompute(o)
	return nil
}

func (l *Lifecycle) SetTracking(o *models.Order, number, carrier string, actor *uuid.UUID) error {
	number = strings.TrimSpace(number)
	carrier = strings.TrimSpace(carrier)
	if number == "" || carrier == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking number and carrier are required")
	}
	at := l.stamp(o)
	o.TrackingNumber = &number
	o.Carrier = &carrier
	o.Timeline = append(o.Timeline, models.TimelineEntry{
		Status:    o.Status,
		Timestamp: at,
		Note:      fmt.Sprintf("Tracking number added: %s (%s)", number, carrier),
		UpdatedBy: actor,
	})
	Recompute(o)
	return nil
}

// stamp is the timestamp for the next timeline entry, never earlier than the
// last one.
func (l *Lifecycle) stamp(o *models.Order) time.Time {
	at := l.now().UTC()
	if n := len(o.Timeline); n > 0 && at.Before(o.Timeline[n-1].Timestamp) {
		at = o.Timeline[n-1].Timestamp
	}
	return at
}

func (l *Lifecycle) appendEntry(o *models.Order, status enums.OrderStatus, note string, actor *uuid.UUID) {
	o.Timeline = append(o.Timeline, models.TimelineEntry{Status: status, Timestamp: l.stamp(o), Note: note, UpdatedBy: actor})
}
