package domain

// OrderStatus is the lifecycle state of an order. Only the values below are
// ever persisted; the orders table carries a matching CHECK constraint.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// transitions holds the allowed next statuses for each current status.
// completed and cancelled are terminal. Cancellation is only possible
// before the order is ready, since at that point food has been committed.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusCompleted},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ValidStatus reports whether s is one of the known order statuses.
func ValidStatus(s OrderStatus) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether an order may move from one status to another.
// A same-status "transition" is not listed here; callers treat it as a no-op
// before consulting the table.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func Terminal(s OrderStatus) bool {
	return len(transitions[s]) == 0
}
