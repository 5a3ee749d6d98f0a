package enums

import "slices"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateAccount OutboxAggregateType = "account"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateAccount,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", validAggregateTypes, value)
}

// OutboxEventType is the routing key of a queued domain event.
type OutboxEventType string

const (
	EventOrderCreated               OutboxEventType = "order.created"
	EventOrderStatusChanged         OutboxEventType = "order.status_changed"
	EventOrderPaid                  OutboxEventType = "order.paid"
	EventOrderCancelled             OutboxEventType = "order.cancelled"
	EventOrderRefunded              OutboxEventType = "order.refunded"
	EventPasswordResetRequested     OutboxEventType = "account.password_reset_requested"
	EventEmailVerificationRequested OutboxEventType = "account.verification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderPaid,
	EventOrderCancelled,
	EventOrderRefunded,
	EventPasswordResetRequested,
	EventEmailVerificationRequested,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", validOutboxEventTypes, value)
}
