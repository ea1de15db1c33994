package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeAdminEvent_NewOrder(t *testing.T) {
	n := OrderNotification{
		OrderID:      "o1",
		CustomerName: "Test Customer",
		Amount:       99.9,
		DeliveryType: DeliveryPickup,
		NotifiedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(NewOrderEventFor(n))
	if err != nil {
		t.Fatalf("error: %v", err)
	}

	event, err := DecodeAdminEvent(payload)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	decoded, ok := event.(NewOrderEvent)
	if !ok {
		t.Fatalf("error: expected NewOrderEvent, got %T", event)
	}
	if decoded.Notification.OrderID != "o1" {
		t.Errorf("error: wrong order id: %s", decoded.Notification.OrderID)
	}
}

func TestDecodeAdminEvent_RemovedOrder(t *testing.T) {
	payload, _ := json.Marshal(RemovedOrderEventFor("o2"))

	event, err := DecodeAdminEvent(payload)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	decoded, ok := event.(RemovedOrderEvent)
	if !ok {
		t.Fatalf("error: expected RemovedOrderEvent, got %T", event)
	}
	if decoded.OrderID != "o2" {
		t.Errorf("error: wrong order id: %s", decoded.OrderID)
	}
}

func TestDecodeAdminEvent_Batch(t *testing.T) {
	payload := []byte(`{"type":"batch","count":3,"totalRevenue":425,"orders":[{"order_id":"o1"}],"timestamp":"2025-06-01T12:00:00Z"}`)

	event, err := DecodeAdminEvent(payload)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	decoded, ok := event.(BatchEvent)
	if !ok {
		t.Fatalf("error: expected BatchEvent, got %T", event)
	}
	if decoded.Count != 3 || decoded.TotalRevenue != 425 {
		t.Errorf("error: wrong batch fields: %+v", decoded)
	}
	if len(decoded.Orders) != 1 {
		t.Errorf("error: expected 1 order in payload, got %d", len(decoded.Orders))
	}
}

func TestDecodeAdminEvent_RejectsUnknownShapes(t *testing.T) {
	cases := [][]byte{
		[]byte(`{"action":"archived","orderId":"o1"}`),
		[]byte(`{"type":"digest","count":1}`),
		[]byte(`{}`),
		[]byte(`not json`),
	}

	for _, payload := range cases {
		if _, err := DecodeAdminEvent(payload); err == nil {
			t.Errorf("error: expected %s to be rejected", payload)
		}
	}
}
