package models

import (
	"encoding/json"
	"fmt"
)

// An AdminEvent is one of the closed set of messages published on the admin channel
type AdminEvent interface {
	adminEvent()
}

// A NewOrderEvent announces a freshly confirmed order to the admin dashboard
type NewOrderEvent struct {
	Action       string            `json:"action"`
	Notification OrderNotification `json:"notification"`
}

// A RemovedOrderEvent announces that an order left the active set
type RemovedOrderEvent struct {
	Action  string `json:"action"`
	OrderID string `json:"orderId"`
}

// A BatchEvent carries one flushed window of accumulated orders
type BatchEvent struct {
	Type         string            `json:"type"`
	Count        int               `json:"count"`
	TotalRevenue float64           `json:"totalRevenue"`
	Orders       []json.RawMessage `json:"orders"`
	Timestamp    string            `json:"timestamp"`
}

func (NewOrderEvent) adminEvent()     {}
func (RemovedOrderEvent) adminEvent() {}
func (BatchEvent) adminEvent()        {}

// NewOrderEventFor wraps a notification with its wire action tag
func NewOrderEventFor(n OrderNotification) NewOrderEvent {
	return NewOrderEvent{Action: "new", Notification: n}
}

// RemovedOrderEventFor wraps an order id with its wire action tag
func RemovedOrderEventFor(orderID string) RemovedOrderEvent {
	return RemovedOrderEvent{Action: "removed", OrderID: orderID}
}

// eventHeader is the discriminator read before committing to a concrete shape
type eventHeader struct {
	Action string `json:"action"`
	Type   string `json:"type"`
}

// DecodeAdminEvent parses a message from the admin channel into its concrete
// variant. Unknown shapes produce an error rather than passing through untyped.
func DecodeAdminEvent(data []byte) (AdminEvent, error) {
	var header eventHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("malformed admin event: %w", err)
	}

	switch {
	case header.Action == "new":
		var event NewOrderEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("malformed new-order event: %w", err)
		}
		return event, nil
	case header.Action == "removed":
		var event RemovedOrderEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("malformed removed-order event: %w", err)
		}
		return event, nil
	case header.Type == "batch":
		var event BatchEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("malformed batch event: %w", err)
		}
		return event, nil
	}

	return nil, fmt.Errorf("unknown admin event shape: action=%q type=%q", header.Action, header.Type)
}
