package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mossvale/marketplace/internal/domain/catalog"
)

// CatalogRepository implements catalog.Repository over the shared store.
type CatalogRepository struct {
	store *Store
}

func NewCatalogRepository(store *Store) *CatalogRepository {
	return &CatalogRepository{store: store}
}

func (r *CatalogRepository) CreateStore(ctx context.Context, st *catalog.Store) error {
	_, err := r.store.db.ExecContext(ctx,
		`INSERT INTO stores (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`,
		st.ID, st.OwnerID, st.Name, toMillis(st.CreatedAt),
	)
	if err != nil {
		return wrapStoreErr("create store", err)
	}
	return nil
}

func (r *CatalogRepository) StoreByID(ctx context.Context, id string) (*catalog.Store, error) {
	row := r.store.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, created_at FROM stores WHERE id = ?`, id)
	return scanStore(row)
}

func (r *CatalogRepository) StoresByOwner(ctx context.Context, ownerID string) ([]*catalog.Store, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT id, owner_id, name, created_at FROM stores WHERE owner_id = ? ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, wrapStoreErr("stores by owner", err)
	}
	defer rows.Close()

	var stores []*catalog.Store
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		stores = append(stores, st)
	}
	return stores, rows.Err()
}

func (r *CatalogRepository) RenameStore(ctx context.Context, id, name string) error {
	res, err := r.store.db.ExecContext(ctx, `UPDATE stores SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return wrapStoreErr("rename store", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrStoreNotFound
	}
	return nil
}

func (r *CatalogRepository) DeleteStore(ctx context.Context, id string) error {
	res, err := r.store.db.ExecContext(ctx, `DELETE FROM stores WHERE id = ?`, id)
	if err != nil {
		return wrapStoreErr("delete store", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrStoreNotFound
	}
	return nil
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p *catalog.Product) error {
	_, err := r.store.db.ExecContext(ctx,
		`INSERT INTO products (id, store_id, name, description, price, stock_qty, active, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.StoreID, p.Name, p.Description, p.Price.StringFixed(2), p.StockQty,
		boolToInt(p.Active), toMillis(p.UpdatedAt),
	)
	if err != nil {
		return wrapStoreErr("create product", err)
	}
	return nil
}

func (r *CatalogRepository) ProductByID(ctx context.Context, id string) (*catalog.Product, error) {
	row := r.store.db.QueryRowContext(ctx,
		`SELECT id, store_id, name, description, price, stock_qty, active, updated_at
		 FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

func (r *CatalogRepository) ActiveProducts(ctx context.Context) ([]*catalog.Product, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT id, store_id, name, description, price, stock_qty, active, updated_at
		 FROM products WHERE active = 1 ORDER BY name`)
	if err != nil {
		return nil, wrapStoreErr("active products", err)
	}
	defer rows.Close()

	var products []*catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateProduct rewrites the mutable product fields. Order-item price
// snapshots live in their own rows and are untouched by price edits.
func (r *CatalogRepository) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	res, err := r.store.db.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, price = ?, stock_qty = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Description, p.Price.StringFixed(2), p.StockQty,
		boolToInt(p.Active), toMillis(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return wrapStoreErr("update product", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func (r *CatalogRepository) DeleteProduct(ctx context.Context, id string) error {
	res, err := r.store.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return wrapStoreErr("delete product", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func (r *CatalogRepository) AddReview(ctx context.Context, rev *catalog.Review) error {
	_, err := r.store.db.ExecContext(ctx,
		`INSERT INTO reviews (id, product_id, buyer_id, rating, comment, verified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rev.ID, rev.ProductID, rev.BuyerID, rev.Rating, rev.Comment,
		boolToInt(rev.Verified), toMillis(rev.CreatedAt),
	)
	if err != nil {
		return wrapStoreErr("add review", err)
	}
	return nil
}

func (r *CatalogRepository) ReviewsByProduct(ctx context.Context, productID string) ([]*catalog.Review, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT id, product_id, buyer_id, rating, comment, verified, created_at
		 FROM reviews WHERE product_id = ? ORDER BY created_at DESC`, productID)
	if err != nil {
		return nil, wrapStoreErr("reviews by product", err)
	}
	defer rows.Close()

	var reviews []*catalog.Review
	for rows.Next() {
		var (
			rev       catalog.Review
			verified  int
			createdAt int64
		)
		if err := rows.Scan(&rev.ID, &rev.ProductID, &rev.BuyerID, &rev.Rating,
			&rev.Comment, &verified, &createdAt); err != nil {
			return nil, wrapStoreErr("scan review", err)
		}
		rev.Verified = verified != 0
		rev.CreatedAt = fromMillis(createdAt)
		reviews = append(reviews, &rev)
	}
	return reviews, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStore(row rowScanner) (*catalog.Store, error) {
	var (
		st        catalog.Store
		createdAt int64
	)
	err := row.Scan(&st.ID, &st.OwnerID, &st.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrStoreNotFound
	}
	if err != nil {
		return nil, wrapStoreErr("scan store", err)
	}
	st.CreatedAt = fromMillis(createdAt)
	return &st, nil
}

func scanProduct(row rowScanner) (*catalog.Product, error) {
	var (
		p         catalog.Product
		price     string
		active    int
		updatedAt int64
	)
	err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Description, &price, &p.StockQty, &active, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrProductNotFound
	}
	if err != nil {
		return nil, wrapStoreErr("scan product", err)
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("sqlite: parse price %q: %w", price, err)
	}
	p.Price = parsed
	p.Active = active != 0
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
