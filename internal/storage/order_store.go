package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tableserve/internal/domain"
	"tableserve/internal/order"
)

// OrderStore implements order.Store on top of PostgreSQL. Status updates are
// conditional on the prior status, which gives the read-modify-write
// atomicity the lifecycle manager requires of its store.
type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

func (s *OrderStore) RestaurantExists(ctx context.Context, restaurantID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM restaurants WHERE id = $1)`, restaurantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query restaurant: %w", err)
	}
	return exists, nil
}

func (s *OrderStore) MenuItems(ctx context.Context, restaurantID string, ids []string) (map[string]domain.MenuItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, restaurant_id, name, price, available
		FROM menu_items
		WHERE restaurant_id = $1 AND id = ANY($2)`, restaurantID, ids)
	if err != nil {
		return nil, fmt.Errorf("query menu items: %w", err)
	}
	defer rows.Close()

	items := make(map[string]domain.MenuItem, len(ids))
	for rows.Next() {
		var mi domain.MenuItem
		if err := rows.Scan(&mi.ID, &mi.RestaurantID, &mi.Name, &mi.Price, &mi.Available); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items[mi.ID] = mi
	}
	return items, rows.Err()
}

// orderNumberConstraint is the unique constraint on (restaurant_id,
// order_number). Two creates in the same restaurant-day can mint the same
// daily number; the constraint rejects the loser, which re-counts and retries.
const orderNumberConstraint = "orders_restaurant_order_number_key"

// isUniqueViolation reports whether err is a Postgres unique_violation on the
// named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// CreateOrder persists the order, its line items, and the initial status log
// row in a single transaction, and assigns the daily order number. A number
// collision with a concurrent create is retried with a fresh count.
func (s *OrderStore) CreateOrder(ctx context.Context, o *domain.Order, changedBy string) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = s.createOrder(ctx, o, changedBy); !isUniqueViolation(err, orderNumberConstraint) {
			return err
		}
	}
	return fmt.Errorf("assign order number: %w", err)
}

func (s *OrderStore) createOrder(ctx context.Context, o *domain.Order, changedBy string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Daily sequence for the human-facing order number, ORD_YYYYMMDD_NNN.
	day := o.CreatedAt.Format("20060102")
	var count int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE restaurant_id = $1 AND created_at::DATE = $2::DATE`,
		o.RestaurantID, o.CreatedAt).Scan(&count)
	if err != nil {
		return fmt.Errorf("count today's orders: %w", err)
	}
	o.Number = fmt.Sprintf("ORD_%s_%03d", day, count+1)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, restaurant_id, table_number, customer_name,
			customer_phone, total_amount, status, order_type, payment_method,
			payment_status, special_instructions, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.Number, o.RestaurantID, o.TableNumber, o.CustomerName,
		o.CustomerPhone, o.TotalAmount, o.Status, o.Type, o.PaymentMethod,
		o.PaymentStatus, o.SpecialInstructions, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, menu_item_id, name, unit_price, quantity, notes)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, it.MenuItemID, it.Name, it.UnitPrice, it.Quantity, it.Notes)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at, note)
		VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.Status, changedBy, o.CreatedAt, "order placed")
	if err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var o domain.Order
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_number, restaurant_id, table_number, customer_name,
		       customer_phone, total_amount, status, order_type, payment_method,
		       payment_status, special_instructions, created_at, updated_at
		FROM orders WHERE id = $1`, orderID).Scan(
		&o.ID, &o.Number, &o.RestaurantID, &o.TableNumber, &o.CustomerName,
		&o.CustomerPhone, &o.TotalAmount, &o.Status, &o.Type, &o.PaymentMethod,
		&o.PaymentStatus, &o.SpecialInstructions, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", order.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	o.Items, err = s.lineItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OrderStore) lineItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT menu_item_id, name, unit_price, quantity, notes
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var it domain.LineItem
		if err := rows.Scan(&it.MenuItemID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Notes); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateStatus applies the transition only if the stored status still equals
// from. It reports false, nil when another writer got there first. The status
// log row is written in the same transaction as the update.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, changedBy string, at time.Time) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`,
		to, at, orderID, from)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at, note)
		VALUES ($1, $2, $3, $4, $5)`,
		orderID, to, changedBy, at, "")
	if err != nil {
		return false, fmt.Errorf("insert status log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (s *OrderStore) ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error) {
	return s.list(ctx, `
		SELECT id, order_number, restaurant_id, table_number, customer_name,
		       customer_phone, total_amount, status, order_type, payment_method,
		       payment_status, special_instructions, created_at, updated_at
		FROM orders WHERE restaurant_id = $1
		ORDER BY created_at DESC`, restaurantID)
}

func (s *OrderStore) ListByTable(ctx context.Context, restaurantID string, tableNumber int) ([]domain.Order, error) {
	return s.list(ctx, `
		SELECT id, order_number, restaurant_id, table_number, customer_name,
		       customer_phone, total_amount, status, order_type, payment_method,
		       payment_status, special_instructions, created_at, updated_at
		FROM orders WHERE restaurant_id = $1 AND table_number = $2
		ORDER BY created_at DESC`, restaurantID, tableNumber)
}

func (s *OrderStore) ListStalePending(ctx context.Context, olderThan time.Duration) ([]domain.Order, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	return s.list(ctx, `
		SELECT id, order_number, restaurant_id, table_number, customer_name,
		       customer_phone, total_amount, status, order_type, payment_method,
		       payment_status, special_instructions, created_at, updated_at
		FROM orders WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at DESC`, cutoff)
}

func (s *OrderStore) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		err := rows.Scan(
			&o.ID, &o.Number, &o.RestaurantID, &o.TableNumber, &o.CustomerName,
			&o.CustomerPhone, &o.TotalAmount, &o.Status, &o.Type, &o.PaymentMethod,
			&o.PaymentStatus, &o.SpecialInstructions, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *OrderStore) StatusLog(ctx context.Context, orderID string) ([]domain.StatusLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, changed_by, changed_at, note
		FROM order_status_log WHERE order_id = $1 ORDER BY changed_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query status log: %w", err)
	}
	defer rows.Close()

	var log []domain.StatusLogEntry
	for rows.Next() {
		var e domain.StatusLogEntry
		if err := rows.Scan(&e.Status, &e.ChangedBy, &e.ChangedAt, &e.Note); err != nil {
			return nil, fmt.Errorf("scan status log: %w", err)
		}
		log = append(log, e)
	}
	return log, rows.Err()
}
