package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/pagination"
	"github.com/seramic/shop-backend/pkg/types"
)

// OrderItemInput is one requested line; pricing always comes from the catalog.
type OrderItemInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity"`
}

// CreateOrderInput is the checkout payload.
type CreateOrderInput struct {
	Items           []OrderItemInput     `json:"items"`
	ShippingAddress types.PostalAddress  `json:"shippingAddress" validate:"required"`
	BillingAddress  *types.PostalAddress `json:"billingAddress,omitempty" validate:"omitempty"`
	PaymentMethod   enums.PaymentMethod  `json:"paymentMethod" validate:"required,enum"`
	ShippingMethod  enums.ShippingMethod `json:"shippingMethod,omitempty" validate:"omitempty,enum"`
	TaxAmount       decimal.Decimal      `json:"taxAmount"`
	ShippingCost    decimal.Decimal      `json:"shippingCost"`
	DiscountAmount  decimal.Decimal      `json:"discountAmount"`
	CustomerNotes   *string              `json:"customerNotes,omitempty" validate:"omitempty,max=500"`
}

type StatusInput struct {
	Status enums.OrderStatus `json:"status" validate:"required,enum"`
	Note   string            `json:"note,omitempty" validate:"max=500"`
}

type CancelInput struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type RefundInput struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason" validate:"required,max=500"`
}

type TrackingInput struct {
	TrackingNumber string `json:"trackingNumber" validate:"required,max=100"`
	Carrier        string `json:"carrier" validate:"required,max=100"`
}

type PaymentInput struct {
	TransactionID   *string `json:"transactionId,omitempty"`
	PaymentIntentID *string `json:"paymentIntentId,omitempty"`
	Last4           *string `json:"last4,omitempty" validate:"omitempty,len=4,numeric"`
	Brand           *string `json:"brand,omitempty"`
}

func (p PaymentInput) details() models.PaymentDetails {
	return models.PaymentDetails{
		TransactionID:   p.TransactionID,
		PaymentIntentID: p.PaymentIntentID,
		Last4:           p.Last4,
		Brand:           p.Brand,
	}
}

// OrderDTO is the transport shape, including the derived flags.
type OrderDTO struct {
	ID                 uuid.UUID              `json:"id"`
	OrderNumber        string                 `json:"orderNumber"`
	UserID             uuid.UUID              `json:"user"`
	Items              []models.OrderItem     `json:"items"`
	ShippingAddress    types.PostalAddress    `json:"shippingAddress"`
	BillingAddress     *types.PostalAddress   `json:"billingAddress,omitempty"`
	Status             enums.OrderStatus      `json:"status"`
	Timeline           []models.TimelineEntry `json:"timeline"`
	PaymentMethod      enums.PaymentMethod    `json:"paymentMethod"`
	PaymentStatus      enums.PaymentStatus    `json:"paymentStatus"`
	PaymentDetails     models.PaymentDetails  `json:"paymentDetails"`
	Subtotal           decimal.Decimal        `json:"subtotal"`
	TaxAmount          decimal.Decimal        `json:"taxAmount"`
	ShippingCost       decimal.Decimal        `json:"shippingCost"`
	DiscountAmount     decimal.Decimal        `json:"discountAmount"`
	Total              decimal.Decimal        `json:"total"`
	Currency           string                 `json:"currency"`
	ShippingMethod     enums.ShippingMethod   `json:"shippingMethod"`
	EstimatedDelivery  *time.Time             `json:"estimatedDelivery,omitempty"`
	ActualDelivery     *time.Time             `json:"actualDelivery,omitempty"`
	TrackingNumber     *string                `json:"trackingNumber,omitempty"`
	Carrier            *string                `json:"carrier,omitempty"`
	Notes              *string                `json:"notes,omitempty"`
	CustomerNotes      *string                `json:"customerNotes,omitempty"`
	CancellationReason *string                `json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time             `json:"cancelledAt,omitempty"`
	CancelledBy        *uuid.UUID             `json:"cancelledBy,omitempty"`
	RefundReason       *string                `json:"refundReason,omitempty"`
	RefundedAt         *time.Time             `json:"refundedAt,omitempty"`
	RefundedBy         *uuid.UUID             `json:"refundedBy,omitempty"`
	ItemsCount         int                    `json:"itemsCount"`
	CanCancel          bool                   `json:"canCancel"`
	CanRefund          bool                   `json:"canRefund"`
	IsCompleted        bool                   `json:"isCompleted"`
	AgeInDays          int                    `json:"ageInDays"`
	Version            int                    `json:"version"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

func FromModel(o *models.Order, now time.Time) *OrderDTO {
	if o == nil {
		return nil
	}
	return &OrderDTO{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		UserID:             o.UserID,
		Items:              o.Items,
		ShippingAddress:    o.ShippingAddress,
		BillingAddress:     o.BillingAddress,
		Status:             o.Status,
		Timeline:           o.Timeline,
		PaymentMethod:      o.PaymentMethod,
		PaymentStatus:      o.PaymentStatus,
		PaymentDetails:     o.PaymentDetails,
		Subtotal:           o.Subtotal,
		TaxAmount:          o.TaxAmount,
		ShippingCost:       o.ShippingCost,
		DiscountAmount:     o.DiscountAmount,
		Total:              o.Total,
		Currency:           o.Currency,
		ShippingMethod:     o.ShippingMethod,
		EstimatedDelivery:  o.EstimatedDelivery,
		ActualDelivery:     o.ActualDelivery,
		TrackingNumber:     o.TrackingNumber,
		Carrier:            o.Carrier,
		Notes:              o.Notes,
		CustomerNotes:      o.CustomerNotes,
		CancellationReason: o.CancellationReason,
		CancelledAt:        o.CancelledAt,
		CancelledBy:        o.CancelledBy,
		RefundReason:       o.RefundReason,
		RefundedAt:         o.RefundedAt,
		RefundedBy:         o.RefundedBy,
		ItemsCount:         ItemsCount(o),
		CanCancel:          Cancellable(o),
		CanRefund:          Refundable(o),
		IsCompleted:        IsCompleted(o),
		AgeInDays:          AgeInDays(o, now),
		Version:            o.Version,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

// OrderList is a page of orders.
type OrderList struct {
	Orders []OrderDTO          `json:"orders"`
	Meta   pagination.PageMeta `json:"meta"`
}
