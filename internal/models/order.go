// Package models implements the typed records that move through the notification pipeline
package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// A DeliveryType enumerates how a paid order is handed over
type DeliveryType string

const (
	DeliveryCourier DeliveryType = "courier"
	DeliveryPickup  DeliveryType = "pickup"
)

// A PaidOrder is one row of the durable order store with payment status "paid"
type PaidOrder struct {
	ID            string       `json:"id" db:"id"`
	CustomerID    string       `json:"customer_id" db:"customer_id"`
	CustomerName  string       `json:"customer_name" db:"customer_name"`
	Amount        float64      `json:"amount" db:"amount"`
	DeliveryType  DeliveryType `json:"delivery_type" db:"delivery_type"`
	PaymentStatus string       `json:"payment_status" db:"payment_status"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// An OrderSummary is the compact shape of a paid order carried in batch payloads
type OrderSummary struct {
	OrderID      string       `json:"order_id"`
	CustomerName string       `json:"customer_name"`
	Amount       float64      `json:"amount"`
	DeliveryType DeliveryType `json:"delivery_type"`
	PaidAt       time.Time    `json:"paid_at"`
}

// A BatchJob is one work-queue message asking the worker to batch a paid order
type BatchJob struct {
	Type  string       `json:"type"`
	Order OrderSummary `json:"order"`
}

// JobTypeBatchOrder is the only job type the batching worker understands
const JobTypeBatchOrder = "batch_order"

// A ValidationError is a custom error type for data validation
type ValidationError struct {
	Field   string
	Struct  string
	Message string
}

// Error is an interface implementation for errors
func (e ValidationError) Error() string {
	return fmt.Sprintf("Validation error in field %s.%s: %s", e.Struct, e.Field, e.Message)
}

// NewOrderValidationError is a validation error in the PaidOrder
func NewOrderValidationError(field, message string) ValidationError {
	return ValidationError{field, "order", message}
}

// NewJobValidationError is a validation error in the BatchJob
func NewJobValidationError(field, message string) ValidationError {
	return ValidationError{field, "job", message}
}

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Validate checks if the PaidOrder data is correct
func (o *PaidOrder) Validate() error {
	if err := o.validateRequired(); err != nil {
		return err
	}
	if err := o.validateLogic(); err != nil {
		return err
	}

	return nil
}

// validateRequired checks if the required fields of a PaidOrder are set
func (o *PaidOrder) validateRequired() error {
	if strings.TrimSpace(o.ID) == "" {
		return NewOrderValidationError("id", "is required")
	}
	if strings.TrimSpace(o.CustomerID) == "" {
		return NewOrderValidationError("customer_id", "is required")
	}
	if o.UpdatedAt.IsZero() {
		return NewOrderValidationError("updated_at", "is required")
	}

	return nil
}

// validateLogic checks that values for PaidOrder fields are valid
func (o *PaidOrder) validateLogic() error {
	if !uuidPattern.MatchString(o.ID) {
		return NewOrderValidationError("id", "must be a UUID")
	}
	if !uuidPattern.MatchString(o.CustomerID) {
		return NewOrderValidationError("customer_id", "must be a UUID")
	}
	if o.DeliveryType != DeliveryCourier && o.DeliveryType != DeliveryPickup {
		return NewOrderValidationError(
			"delivery_type", fmt.Sprintf("unknown delivery type: %s", o.DeliveryType),
		)
	}
	if o.Amount < 0 {
		return NewOrderValidationError("amount", "cannot be negative")
	}
	if o.UpdatedAt.After(time.Now()) {
		return NewOrderValidationError("updated_at", "cannot be in the future")
	}
	if !o.CreatedAt.IsZero() && o.UpdatedAt.Before(o.CreatedAt) {
		return NewOrderValidationError("updated_at", "cannot precede created_at")
	}

	return nil
}

// Summary converts the row into the shape carried by batch payloads
func (o *PaidOrder) Summary() OrderSummary {
	return OrderSummary{
		OrderID:      o.ID,
		CustomerName: o.CustomerName,
		Amount:       o.Amount,
		DeliveryType: o.DeliveryType,
		PaidAt:       o.UpdatedAt,
	}
}

// Validate checks if the BatchJob data is correct
func (j *BatchJob) Validate() error {
	if j.Type != JobTypeBatchOrder {
		return NewJobValidationError("type", fmt.Sprintf("unknown job type: %s", j.Type))
	}
	if strings.TrimSpace(j.Order.OrderID) == "" {
		return NewJobValidationError("order.order_id", "is required")
	}
	if j.Order.Amount < 0 {
		return NewJobValidationError("order.amount", "cannot be negative")
	}

	return nil
}

// A FlushResult is what FlushAndPublish returns for a non-empty pending batch.
// Count is the pre-truncation length; Orders may hold fewer entries.
type FlushResult struct {
	Count  int
	Total  float64
	Orders []json.RawMessage
}
