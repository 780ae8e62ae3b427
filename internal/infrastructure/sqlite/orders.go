package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mossvale/marketplace/internal/domain/catalog"
	"github.com/mossvale/marketplace/internal/domain/order"
)

// OrderRepository implements order.Repository over the shared store.
type OrderRepository struct {
	store *Store
}

func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

// Checkout runs fn against a transaction-scoped view. All stock decrements
// and order rows commit or roll back together.
func (r *OrderRepository) Checkout(ctx context.Context, fn func(ctx context.Context, tx order.CheckoutTx) error) error {
	return r.store.inTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &checkoutTx{tx: tx})
	})
}

type checkoutTx struct {
	tx *sql.Tx
}

func (c *checkoutTx) ProductForCheckout(ctx context.Context, productID string) (*catalog.Product, error) {
	row := c.tx.QueryRowContext(ctx,
		`SELECT id, store_id, name, description, price, stock_qty, active, updated_at
		 FROM products WHERE id = ?`, productID)
	return scanProduct(row)
}

// ReserveStock is the inventory ledger's atomic reserve-or-fail: the
// availability check and the decrement are one guarded UPDATE, so no
// concurrent reservation can observe an interleaved state between them.
func (c *checkoutTx) ReserveStock(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, order.ErrInvalidQuantity
	}

	res, err := c.tx.ExecContext(ctx,
		`UPDATE products SET stock_qty = stock_qty - ? WHERE id = ? AND stock_qty >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return 0, wrapStoreErr("reserve stock", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStoreErr("reserve stock", err)
	}

	if affected == 0 {
		// The guard rejected the decrement; report how much was available.
		var name string
		var available int
		row := c.tx.QueryRowContext(ctx,
			`SELECT name, stock_qty FROM products WHERE id = ?`, productID)
		if err := row.Scan(&name, &available); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, catalog.ErrProductNotFound
			}
			return 0, wrapStoreErr("reserve stock lookup", err)
		}
		return 0, &catalog.InsufficientStockError{
			ProductID:   productID,
			ProductName: name,
			Requested:   quantity,
			Available:   available,
		}
	}

	var remaining int
	row := c.tx.QueryRowContext(ctx, `SELECT stock_qty FROM products WHERE id = ?`, productID)
	if err := row.Scan(&remaining); err != nil {
		return 0, wrapStoreErr("reserve stock remaining", err)
	}
	return remaining, nil
}

func (c *checkoutTx) StoreName(ctx context.Context, storeID string) (string, error) {
	var name string
	row := c.tx.QueryRowContext(ctx, `SELECT name FROM stores WHERE id = ?`, storeID)
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", catalog.ErrStoreNotFound
		}
		return "", wrapStoreErr("store name", err)
	}
	return name, nil
}

func (c *checkoutTx) InsertOrder(ctx context.Context, o *order.Order) error {
	if len(o.Items) == 0 {
		return order.ErrNoItems
	}

	if _, err := c.tx.ExecContext(ctx,
		`INSERT INTO orders (id, buyer_id, created_at) VALUES (?, ?, ?)`,
		o.ID, o.BuyerID, toMillis(o.CreatedAt),
	); err != nil {
		return wrapStoreErr("insert order", err)
	}

	for _, item := range o.Items {
		if _, err := c.tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, store_id, store_name, quantity, unit_price)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.OrderID, item.ProductID, item.ProductName, item.StoreID, item.StoreName,
			item.Quantity, item.UnitPrice.StringFixed(2),
		); err != nil {
			return wrapStoreErr("insert order item", err)
		}
	}
	return nil
}

func (r *OrderRepository) OrderByID(ctx context.Context, id string) (*order.Order, error) {
	row := r.store.db.QueryRowContext(ctx,
		`SELECT id, buyer_id, created_at FROM orders WHERE id = ?`, id)

	var (
		o         order.Order
		createdAt int64
	)
	err := row.Scan(&o.ID, &o.BuyerID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, wrapStoreErr("scan order", err)
	}
	o.CreatedAt = fromMillis(createdAt)

	items, err := r.itemsByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *OrderRepository) OrdersByBuyer(ctx context.Context, buyerID string) ([]*order.Order, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT id, buyer_id, created_at FROM orders WHERE buyer_id = ? ORDER BY created_at DESC`,
		buyerID)
	if err != nil {
		return nil, wrapStoreErr("orders by buyer", err)
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		var (
			o         order.Order
			createdAt int64
		)
		if err := rows.Scan(&o.ID, &o.BuyerID, &createdAt); err != nil {
			return nil, wrapStoreErr("scan order", err)
		}
		o.CreatedAt = fromMillis(createdAt)
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("orders by buyer", err)
	}

	for _, o := range orders {
		items, err := r.itemsByOrder(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		o.Items = items
	}
	return orders, nil
}

func (r *OrderRepository) HasPurchased(ctx context.Context, buyerID, productID string) (bool, error) {
	row := r.store.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE o.buyer_id = ? AND oi.product_id = ?
		)`, buyerID, productID)

	var exists int
	if err := row.Scan(&exists); err != nil {
		return false, wrapStoreErr("has purchased", err)
	}
	return exists != 0, nil
}

func (r *OrderRepository) itemsByOrder(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT order_id, product_id, product_name, store_id, store_name, quantity, unit_price
		 FROM order_items WHERE order_id = ? ORDER BY product_id`, orderID)
	if err != nil {
		return nil, wrapStoreErr("items by order", err)
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var (
			item  order.Item
			price string
		)
		if err := rows.Scan(&item.OrderID, &item.ProductID, &item.ProductName,
			&item.StoreID, &item.StoreName, &item.Quantity, &price); err != nil {
			return nil, wrapStoreErr("scan order item", err)
		}
		parsed, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse unit price %q: %w", price, err)
		}
		item.UnitPrice = parsed
		items = append(items, item)
	}
	return items, rows.Err()
}
