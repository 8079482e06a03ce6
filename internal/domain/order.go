package domain

import "time"

type OrderType string

const (
	TypeDineIn   OrderType = "dine_in"
	TypeTakeaway OrderType = "takeaway"
	TypeDelivery OrderType = "delivery"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Order is the central entity. Line items and the total are immutable once
// the order exists; only Status (and UpdatedAt with it) changes afterwards.
type Order struct {
	ID                  string        `json:"id"`
	Number              string        `json:"order_number"`
	RestaurantID        string        `json:"restaurant_id"`
	TableNumber         *int          `json:"table_number,omitempty"`
	CustomerName        string        `json:"customer_name,omitempty"`
	CustomerPhone       string        `json:"customer_phone,omitempty"`
	Items               []LineItem    `json:"items"`
	TotalAmount         float64       `json:"total_amount"`
	Status              OrderStatus   `json:"status"`
	Type                OrderType     `json:"order_type"`
	PaymentMethod       string        `json:"payment_method"`
	PaymentStatus       PaymentStatus `json:"payment_status"`
	SpecialInstructions string        `json:"special_instructions,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// LineItem is one menu item within an order. UnitPrice is captured from the
// menu at order time, so later menu price changes do not alter history.
type LineItem struct {
	MenuItemID string  `json:"menu_item_id"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   int     `json:"quantity"`
	Notes      string  `json:"notes,omitempty"`
}

// MenuItem is the slice of the menu the order path needs: current name and
// price for capture into line items.
type MenuItem struct {
	ID           string
	RestaurantID string
	Name         string
	Price        float64
	Available    bool
}

// StatusLogEntry is one row of the per-order status audit trail, written in
// the same transaction as the status change it records.
type StatusLogEntry struct {
	Status    OrderStatus `json:"status"`
	ChangedBy string      `json:"changed_by"`
	ChangedAt time.Time   `json:"changed_at"`
	Note      string      `json:"note,omitempty"`
}

// Actor identifies who is asking for a status transition. Role logic lives
// with the external auth collaborator; the lifecycle manager only checks
// that the actor's restaurant matches the order's.
type Actor struct {
	Name         string
	RestaurantID string
}
