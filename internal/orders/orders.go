package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Conf struct {
	db *pgxpool.Pool
}

func NewConf(db *pgxpool.Pool) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

func (c *Conf) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if er := tx.Rollback(ctx); er != nil && !errors.Is(er, pgx.ErrTxClosed) {
			return fmt.Errorf("failed to rollback tx after %v: %w", err, er)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

// mergeItems collapses duplicate product ids and returns the distinct ids
// in ascending order. Locking products in a deterministic order keeps two
// concurrent orders over the same product set from deadlocking each other.
func mergeItems(items []NewOrderItem) ([]string, map[string]int) {
	quantities := make(map[string]int, len(items))
	for _, it := range items {
		quantities[it.ProductID] += it.Quantity
	}
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, quantities
}

// CreateOrder runs the whole creation as one transaction: lock each product
// row, validate stock, snapshot prices, decrement stock, then persist the
// order and its items. Any failure rolls everything back.
func (c *Conf) CreateOrder(ctx context.Context, userID, shippingAddress string, items []NewOrderItem) (Order, error) {
	productIDs, quantities := mergeItems(items)

	order := Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		ShippingAddress: shippingAddress,
	}

	err := c.withTx(ctx, func(tx pgx.Tx) error {
		var total int64
		lines := make([]OrderItem, 0, len(productIDs))

		queryLockProduct := `
			SELECT price_cents, stock
			FROM products
			WHERE id = $1
			FOR UPDATE
		`
		for _, productID := range productIDs {
			quantity := quantities[productID]

			var priceCents int64
			var stock int
			err := tx.QueryRow(ctx, queryLockProduct, productID).Scan(&priceCents, &stock)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
				}
				return fmt.Errorf("failed to lock product %s: %w", productID, err)
			}

			if stock < quantity {
				return &InsufficientStockError{ProductID: productID, Available: stock, Requested: quantity}
			}

			queryDecrementStock := `
				UPDATE products
				SET stock = stock - $2, updated_at = NOW()
				WHERE id = $1
			`
			if _, err := tx.Exec(ctx, queryDecrementStock, productID, quantity); err != nil {
				return fmt.Errorf("failed to decrement stock for product %s: %w", productID, err)
			}

			total += priceCents * int64(quantity)
			lines = append(lines, OrderItem{
				OrderID:              order.ID,
				ProductID:            productID,
				Quantity:             quantity,
				PriceAtPurchaseCents: priceCents,
			})
		}

		queryInsertOrder := `
			INSERT INTO orders (id, user_id, status, payment_status, shipping_address, total_cents)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING order_date, created_at, updated_at
		`
		err := tx.QueryRow(ctx, queryInsertOrder,
			order.ID, order.UserID, order.Status, order.PaymentStatus, order.ShippingAddress, total,
		).Scan(&order.OrderDate, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		queryInsertItem := `
			INSERT INTO order_items (order_id, product_id, quantity, price_at_purchase_cents)
			VALUES ($1, $2, $3, $4)
		`
		for _, line := range lines {
			if _, err := tx.Exec(ctx, queryInsertItem,
				line.OrderID, line.ProductID, line.Quantity, line.PriceAtPurchaseCents); err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}

		order.TotalCents = total
		order.Items = lines
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// GetOrder fetches one order with its items.
func (c *Conf) GetOrder(ctx context.Context, orderID string) (Order, error) {
	queryOrder := `
		SELECT id, user_id, status, payment_status, shipping_address, total_cents,
		       payment_intent_id, order_date, created_at, updated_at
		FROM orders
		WHERE id = $1
	`
	var o Order
	err := c.db.QueryRow(ctx, queryOrder, orderID).Scan(
		&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.ShippingAddress, &o.TotalCents,
		&o.PaymentIntentID, &o.OrderDate, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("failed to query order %s: %w", orderID, err)
	}

	queryItems := `
		SELECT order_id, product_id, quantity, price_at_purchase_cents
		FROM order_items
		WHERE order_id = $1
	`
	rows, err := c.db.Query(ctx, queryItems, orderID)
	if err != nil {
		return Order{}, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.OrderID, &item.ProductID, &item.Quantity, &item.PriceAtPurchaseCents); err != nil {
			return Order{}, fmt.Errorf("failed to scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return Order{}, fmt.Errorf("error iterating order items: %w", err)
	}
	return o, nil
}

// ListOrders returns the given user's orders, newest first.
func (c *Conf) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	query := `
		SELECT id, user_id, status, payment_status, shipping_address, total_cents,
		       payment_intent_id, order_date, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY order_date DESC
	`
	return c.queryOrders(ctx, query, userID)
}

// ListAllOrders returns every order, newest first. Admin-only callers.
func (c *Conf) ListAllOrders(ctx context.Context) ([]Order, error) {
	query := `
		SELECT id, user_id, status, payment_status, shipping_address, total_cents,
		       payment_intent_id, order_date, created_at, updated_at
		FROM orders
		ORDER BY order_date DESC
	`
	return c.queryOrders(ctx, query)
}

func (c *Conf) queryOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.ShippingAddress, &o.TotalCents,
			&o.PaymentIntentID, &o.OrderDate, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus moves the order to any member of the status set. No
// transition graph is enforced.
func (c *Conf) UpdateStatus(ctx context.Context, orderID string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	query := `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`
	ct, err := c.db.Exec(ctx, query, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to update status of order %s: %w", orderID, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdatePaymentStatus is the administrative counterpart to SettlePayment.
func (c *Conf) UpdatePaymentStatus(ctx context.Context, orderID string, status PaymentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidPaymentStatus, status)
	}
	query := `UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`
	ct, err := c.db.Exec(ctx, query, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to update payment status of order %s: %w", orderID, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SettlePayment applies a verified provider event. The first event binds
// the payment intent to the order; after that both the order id and the
// intent id must match, so one order's notification can never mutate
// another order. Replays of the same event converge to the same state.
// Returns false when no row matched (unknown order or foreign intent).
func (c *Conf) SettlePayment(ctx context.Context, orderID, paymentIntentID string, status PaymentStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: %s", ErrInvalidPaymentStatus, status)
	}
	query := `
		UPDATE orders
		SET payment_status = $3, payment_intent_id = $2, updated_at = NOW()
		WHERE id = $1 AND (payment_intent_id = '' OR payment_intent_id = $2)
	`
	ct, err := c.db.Exec(ctx, query, orderID, paymentIntentID, status)
	if err != nil {
		return false, fmt.Errorf("failed to settle payment for order %s: %w", orderID, err)
	}
	return ct.RowsAffected() == 1, nil
}

// DeleteOrder removes an order and its items in one transaction, guarded
// by the cancellation gate. The order row is locked first so the check and
// the delete see the same state.
func (c *Conf) DeleteOrder(ctx context.Context, requesterID string, isAdmin bool, orderID string) error {
	return c.withTx(ctx, func(tx pgx.Tx) error {
		queryLockOrder := `
			SELECT id, user_id, status
			FROM orders
			WHERE id = $1
			FOR UPDATE
		`
		var o Order
		err := tx.QueryRow(ctx, queryLockOrder, orderID).Scan(&o.ID, &o.UserID, &o.Status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to lock order %s: %w", orderID, err)
		}

		if err := CanDelete(requesterID, isAdmin, o); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
			return fmt.Errorf("failed to delete items of order %s: %w", orderID, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID); err != nil {
			return fmt.Errorf("failed to delete order %s: %w", orderID, err)
		}
		return nil
	})
}
