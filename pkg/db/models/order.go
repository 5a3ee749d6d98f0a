package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/types"
)

const DefaultCurrency = "USD"

// OrderItem is the catalog snapshot captured when the order is placed.
type OrderItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// TimelineEntry is one append-only record of the order history.
type TimelineEntry struct {
	Status    enums.OrderStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Note      string            `json:"note,omitempty"`
	UpdatedBy *uuid.UUID        `json:"updatedBy,omitempty"`
}

// PaymentDetails is provider metadata merged in by markPaid and refund.
type PaymentDetails struct {
	TransactionID   *string          `json:"transactionId,omitempty"`
	PaymentIntentID *string          `json:"paymentIntentId,omitempty"`
	Last4           *string          `json:"last4,omitempty"`
	Brand           *string          `json:"brand,omitempty"`
	PaidAt          *time.Time       `json:"paidAt,omitempty"`
	RefundedAt      *time.Time       `json:"refundedAt,omitempty"`
	RefundAmount    *decimal.Decimal `json:"refundAmount,omitempty"`
}

// Order is the aggregate owned by the lifecycle manager. Items and timeline
// live in JSON columns because they are never shared across orders.
type Order struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber        string                `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	UserID             uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index:idx_orders_user_id"`
	Items              []OrderItem           `gorm:"column:items;type:jsonb;serializer:json;not null"`
	ShippingAddress    types.PostalAddress   `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	BillingAddress     *types.PostalAddress  `gorm:"column:billing_address;type:jsonb;serializer:json"`
	Status             enums.OrderStatus     `gorm:"column:status;type:text;not null;index:idx_orders_status"`
	Timeline           []TimelineEntry       `gorm:"column:timeline;type:jsonb;serializer:json;not null"`
	PaymentMethod      enums.PaymentMethod   `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus      enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null"`
	PaymentDetails     PaymentDetails        `gorm:"column:payment_details;type:jsonb;serializer:json"`
	Subtotal           decimal.Decimal       `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TaxAmount          decimal.Decimal       `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	ShippingCost       decimal.Decimal       `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	DiscountAmount     decimal.Decimal       `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	Total              decimal.Decimal       `gorm:"column:total;type:numeric(12,2);not null"`
	Currency           string                `gorm:"column:currency;not null;default:'USD'"`
	ShippingMethod     enums.ShippingMethod  `gorm:"column:shipping_method;type:text;not null"`
	EstimatedDelivery  *time.Time            `gorm:"column:estimated_delivery"`
	ActualDelivery     *time.Time            `gorm:"column:actual_delivery"`
	TrackingNumber     *string               `gorm:"column:tracking_number"`
	Carrier            *string               `gorm:"column:carrier"`
	Notes              *string               `gorm:"column:notes"`
	CustomerNotes      *string               `gorm:"column:customer_notes"`
	CancellationReason *string               `gorm:"column:cancellation_reason"`
	CancelledAt        *time.Time            `gorm:"column:cancelled_at"`
	CancelledBy        *uuid.UUID            `gorm:"column:cancelled_by;type:uuid"`
	RefundReason       *string               `gorm:"column:refund_reason"`
	RefundedAt         *time.Time            `gorm:"column:refunded_at"`
	RefundedBy         *uuid.UUID            `gorm:"column:refunded_by;type:uuid"`
	Version            int                   `gorm:"column:version;not null;default:1"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime;index:idx_orders_created_at"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	return ensureID(&o.ID)
}
