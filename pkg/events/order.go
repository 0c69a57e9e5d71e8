package events

import "time"

const (
	TopicOrderEvents = "order_events"

	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Price     int64  `json:"price"`
}

type OrderEvent struct {
	Type           string      `json:"type"`
	OrderID        string      `json:"order_id"`
	UserID         string      `json:"user_id"`
	Status         string      `json:"status"`
	PreviousStatus string      `json:"previous_status,omitempty"`
	TotalAmount    int64       `json:"total_amount"`
	Items          []OrderLine `json:"items,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}
