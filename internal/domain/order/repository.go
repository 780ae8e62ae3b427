package order

import (
	"context"

	"github.com/mossvale/marketplace/internal/domain/catalog"
)

// CheckoutTx is the transaction-scoped view the checkout engine works
// against. Every call happens inside one unit of work; if the surrounding
// Checkout returns an error, nothing done through the tx survives.
type CheckoutTx interface {
	// ProductForCheckout loads a product for line validation. A missing
	// product reports catalog.ErrProductNotFound.
	ProductForCheckout(ctx context.Context, productID string) (*catalog.Product, error)

	// ReserveStock atomically decrements the product's stock counter,
	// succeeding only if at least quantity units are available at the
	// instant of the update. It returns the post-decrement quantity, or a
	// *catalog.InsufficientStockError carrying the available count.
	ReserveStock(ctx context.Context, productID string, quantity int) (int, error)

	// StoreName resolves a store's display name for the denormalized
	// order-line snapshot.
	StoreName(ctx context.Context, storeID string) (string, error)

	// InsertOrder persists the order header and all of its items.
	InsertOrder(ctx context.Context, o *Order) error
}

type Repository interface {
	// Checkout runs fn inside a single atomic unit of work and commits it
	// only if fn returns nil.
	Checkout(ctx context.Context, fn func(ctx context.Context, tx CheckoutTx) error) error

	OrderByID(ctx context.Context, id string) (*Order, error)
	OrdersByBuyer(ctx context.Context, buyerID string) ([]*Order, error)

	// HasPurchased reports whether the buyer has a past order line for the
	// product. Used to mark reviews as verified purchases.
	HasPurchased(ctx context.Context, buyerID, productID string) (bool, error)
}
