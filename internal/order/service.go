// Package order implements the order lifecycle manager: the single authority
// for creating orders and moving them through the status pipeline, and the
// read paths both customer and staff views depend on.
package order

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"tableserve/internal/domain"
	"tableserve/internal/logging"
	"tableserve/internal/metrics"
)

// totalEpsilon bounds the tolerated difference between the client-declared
// total and the recomputed sum of unit_price*quantity. Anything larger is
// rejected as price tampering.
const totalEpsilon = 0.005

// roundCents snaps a float money sum to exact cents. Summing per-line prices
// in float64 accumulates binary error that must not leak into stored totals.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Store is the persisted record store the lifecycle manager reads and writes.
// UpdateStatus must be a conditional (compare-and-swap) update: it only
// applies when the stored status still equals from, so two concurrent
// transitions from the same prior state cannot both succeed.
type Store interface {
	RestaurantExists(ctx context.Context, restaurantID string) (bool, error)
	MenuItems(ctx context.Context, restaurantID string, ids []string) (map[string]domain.MenuItem, error)

	CreateOrder(ctx context.Context, o *domain.Order, changedBy string) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, changedBy string, at time.Time) (bool, error)

	ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error)
	ListByTable(ctx context.Context, restaurantID string, tableNumber int) ([]domain.Order, error)
	ListStalePending(ctx context.Context, olderThan time.Duration) ([]domain.Order, error)
	StatusLog(ctx context.Context, orderID string) ([]domain.StatusLogEntry, error)
}

// Notifier delivers lifecycle events to viewers. Delivery is best-effort:
// errors are logged here and never propagate back into the lifecycle path.
type Notifier interface {
	Publish(ctx context.Context, ev domain.OrderEvent) error
}

type Service struct {
	store    Store
	notifier Notifier
	validate *validator.Validate
}

type CreateInput struct {
	RestaurantID        string           `json:"restaurant_id" validate:"required"`
	TableNumber         *int             `json:"table_number" validate:"omitempty,min=1"`
	CustomerName        string           `json:"customer_name" validate:"omitempty,max=100"`
	CustomerPhone       string           `json:"customer_phone" validate:"omitempty,max=32"`
	Items               []CreateItem     `json:"items" validate:"required,min=1,dive"`
	OrderType           domain.OrderType `json:"order_type" validate:"required,oneof=dine_in takeaway delivery"`
	PaymentMethod       string           `json:"payment_method" validate:"required,oneof=cash card online"`
	SpecialInstructions string           `json:"special_instructions" validate:"omitempty,max=500"`
	TotalAmount         float64          `json:"total_amount" validate:"required,gt=0"`
}

type CreateItem struct {
	MenuItemID string `json:"menu_item_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
	Notes      string `json:"notes" validate:"omitempty,max=200"`
}

func NewService(store Store, notifier Notifier) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Create validates the input, captures current menu prices into line items,
// persists the order in status pending, and emits an order_created event.
// Nothing is persisted on validation failure, and no event is emitted.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.OrderType == domain.TypeDineIn && in.TableNumber == nil {
		return nil, fmt.Errorf("%w: table_number is required for dine_in orders", ErrValidation)
	}

	exists, err := s.store.RestaurantExists(ctx, in.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("check restaurant: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: restaurant %s", ErrNotFound, in.RestaurantID)
	}

	items, total, err := s.captureItems(ctx, in)
	if err != nil {
		return nil, err
	}
	if math.Abs(total-in.TotalAmount) > totalEpsilon {
		return nil, fmt.Errorf("%w: declared total %.2f does not match computed %.2f",
			ErrValidation, in.TotalAmount, total)
	}

	now := time.Now().UTC()
	o := &domain.Order{
		ID:                  uuid.NewString(),
		RestaurantID:        in.RestaurantID,
		TableNumber:         in.TableNumber,
		CustomerName:        in.CustomerName,
		CustomerPhone:       in.CustomerPhone,
		Items:               items,
		TotalAmount:         total,
		Status:              domain.StatusPending,
		Type:                in.OrderType,
		PaymentMethod:       in.PaymentMethod,
		PaymentStatus:       domain.PaymentUnpaid,
		SpecialInstructions: in.SpecialInstructions,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.store.CreateOrder(ctx, o, "customer"); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	metrics.OrdersCreated.Inc()

	s.emit(ctx, domain.OrderEvent{
		EventType:    domain.EventOrderCreated,
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		TableNumber:  o.TableNumber,
		NewStatus:    o.Status,
		Timestamp:    now,
	})
	return o, nil
}

// captureItems resolves menu items and freezes name and unit price into the
// order's line items, returning the recomputed total.
func (s *Service) captureItems(ctx context.Context, in CreateInput) ([]domain.LineItem, float64, error) {
	ids := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.MenuItemID)
	}

	menu, err := s.store.MenuItems(ctx, in.RestaurantID, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("load menu items: %w", err)
	}

	items := make([]domain.LineItem, 0, len(in.Items))
	total := 0.0
	for _, it := range in.Items {
		mi, ok := menu[it.MenuItemID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown menu item %s", ErrValidation, it.MenuItemID)
		}
		if !mi.Available {
			return nil, 0, fmt.Errorf("%w: menu item %s is unavailable", ErrValidation, mi.Name)
		}
		items = append(items, domain.LineItem{
			MenuItemID: mi.ID,
			Name:       mi.Name,
			UnitPrice:  mi.Price,
			Quantity:   it.Quantity,
			Notes:      it.Notes,
		})
		total += mi.Price * float64(it.Quantity)
	}
	return items, roundCents(total), nil
}

// Transition moves an order to the requested status on behalf of actor.
// Re-requesting the current status is a no-op success, so retrying clients
// are safe. The persisted update is conditional on the prior status; on a
// concurrent conflict the loser re-reads and either reports the no-op or the
// now-invalid transition.
func (s *Service) Transition(ctx context.Context, orderID string, requested domain.OrderStatus, actor domain.Actor) (*domain.Order, error) {
	if !domain.ValidStatus(requested) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, requested)
	}

	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.RestaurantID != actor.RestaurantID {
		return nil, fmt.Errorf("%w: order belongs to restaurant %s", ErrForbidden, o.RestaurantID)
	}

	if o.Status == requested {
		return o, nil
	}
	if !domain.CanTransition(o.Status, requested) {
		metrics.TransitionsRejected.Inc()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, requested)
	}

	now := time.Now().UTC()
	applied, err := s.store.UpdateStatus(ctx, orderID, o.Status, requested, actor.Name, now)
	if err != nil {
		return nil, fmt.Errorf("persist status: %w", err)
	}
	if !applied {
		// Lost a race. Re-read: if the winner applied the same status this
		// is the idempotent no-op; otherwise the transition is no longer
		// reachable from the current state.
		cur, err := s.store.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if cur.Status == requested {
			return cur, nil
		}
		metrics.TransitionsRejected.Inc()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, requested)
	}

	o.Status = requested
	o.UpdatedAt = now
	metrics.Transitions.WithLabelValues(string(requested)).Inc()

	s.emit(ctx, domain.OrderEvent{
		EventType:    domain.EventOrderStatusChanged,
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		TableNumber:  o.TableNumber,
		NewStatus:    requested,
		Timestamp:    now,
	})
	return o, nil
}

// Get returns the order or ErrNotFound.
func (s *Service) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// History returns the status audit trail for an order, oldest first.
func (s *Service) History(ctx context.Context, orderID string) ([]domain.StatusLogEntry, error) {
	return s.store.StatusLog(ctx, orderID)
}

// ListByRestaurant returns all orders for a restaurant, newest first.
// Callers filter by status client-side.
func (s *Service) ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error) {
	return s.store.ListByRestaurant(ctx, restaurantID)
}

// ListByTable returns the order history for one table, newest first.
func (s *Service) ListByTable(ctx context.Context, restaurantID string, tableNumber int) ([]domain.Order, error) {
	return s.store.ListByTable(ctx, restaurantID, tableNumber)
}

// ListStalePending exposes orders stuck in pending longer than olderThan.
// No cleanup policy acts on this; it exists so one can be added without
// changing the lifecycle contract.
func (s *Service) ListStalePending(ctx context.Context, olderThan time.Duration) ([]domain.Order, error) {
	return s.store.ListStalePending(ctx, olderThan)
}

var logger = logging.With("order")

func (s *Service) emit(ctx context.Context, ev domain.OrderEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, ev); err != nil {
		// State is already committed; notification is best-effort.
		logger.Error().Err(err).
			Str("event_type", string(ev.EventType)).
			Str("order_id", ev.OrderID).
			Msg("event delivery failed")
	}
}
