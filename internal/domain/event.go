package domain

import "time"

type EventType string

const (
	EventOrderCreated       EventType = "order_created"
	EventOrderStatusChanged EventType = "order_status_changed"
)

// OrderEvent is the message broadcast to viewers on every successful create
// or status transition. It exists only on the wire and carries just enough
// for a viewer to decide whether to re-fetch; it is not authoritative data.
type OrderEvent struct {
	EventType    EventType   `json:"event_type"`
	OrderID      string      `json:"order_id"`
	RestaurantID string      `json:"restaurant_id"`
	TableNumber  *int        `json:"table_number,omitempty"`
	NewStatus    OrderStatus `json:"new_status,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}
