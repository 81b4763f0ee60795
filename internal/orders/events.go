package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated = "OrderCreated"
	EventOrderDeleted = "OrderDeleted"
)

// Room event names on the realtime channel.
const (
	RoomEventOrderCreated = "order-created"
	RoomEventOrderDeleted = "order-deleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	OrderNumber string `json:"order_number"`
	Status      Status `json:"status"`
}

type OrderDeletedPayload struct {
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id"`
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	StockRestored bool   `json:"stock_restored"`
}
