package models

import (
	"strings"
	"time"
)

// An OrderNotification is one entry of the active-orders hash, keyed by order id
type OrderNotification struct {
	OrderID      string       `json:"order_id"`
	CustomerID   string       `json:"customer_id"`
	CustomerName string       `json:"customer_name"`
	Amount       float64      `json:"amount"`
	DeliveryType DeliveryType `json:"delivery_type"`
	CreatedAt    time.Time    `json:"created_at"`
	NotifiedAt   time.Time    `json:"notified_at"`
}

// Age reports how long ago the notification was produced
func (n *OrderNotification) Age(now time.Time) time.Duration {
	return now.Sub(n.NotifiedAt)
}

// An OutboxAction names the deferred side effect captured by an outbox entry
type OutboxAction string

const (
	OutboxActionNew     OutboxAction = "new"
	OutboxActionRemoved OutboxAction = "removed"
)

// An OutboxEntry is one durably queued side effect awaiting replay
type OutboxEntry struct {
	Action       OutboxAction       `json:"action"`
	OrderID      string             `json:"order_id"`
	Notification *OrderNotification `json:"notification,omitempty"`
	Channel      string             `json:"channel"`
	QueuedAt     time.Time          `json:"queued_at"`
}

// NewOutboxValidationError is a validation error in the OutboxEntry
func NewOutboxValidationError(field, message string) ValidationError {
	return ValidationError{field, "outbox", message}
}

// Validate checks if the OutboxEntry data is correct
func (e *OutboxEntry) Validate() error {
	switch e.Action {
	case OutboxActionNew:
		if e.Notification == nil {
			return NewOutboxValidationError("notification", "is required for action new")
		}
	case OutboxActionRemoved:
	default:
		return NewOutboxValidationError("action", "unknown action: "+string(e.Action))
	}
	if strings.TrimSpace(e.OrderID) == "" {
		return NewOutboxValidationError("order_id", "is required")
	}
	if strings.TrimSpace(e.Channel) == "" {
		return NewOutboxValidationError("channel", "is required")
	}

	return nil
}
