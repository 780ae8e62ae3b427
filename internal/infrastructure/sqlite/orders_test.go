package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossvale/marketplace/internal/domain/catalog"
	"github.com/mossvale/marketplace/internal/domain/identity"
	"github.com/mossvale/marketplace/internal/domain/order"
)

func TestReserveStockDecrements(t *testing.T) {
	store := openTestStore(t)
	vendor := seedUser(t, store, "v1", "vendor", identity.CapVendor)
	seedProduct(t, store, vendor.ID, "p1", "9.99", 5)

	repo := NewOrderRepository(store)
	err := repo.Checkout(context.Background(), func(ctx context.Context, tx order.CheckoutTx) error {
		remaining, err := tx.ReserveStock(ctx, "p1", 2)
		require.NoError(t, err)
		assert.Equal(t, 3, remaining)
		return nil
	})
	require.NoError(t, err)

	p, err := NewCatalogRepository(store).ProductByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockQty)
}

func TestReserveStockInsufficientReportsAvailable(t *testing.T) {
	store := openTestStore(t)
	vendor := seedUser(t, store, "v1", "vendor", identity.CapVendor)
	seedProduct(t, store, vendor.ID, "p1", "9.99", 1)

	repo := NewOrderRepository(store)
	err := repo.Checkout(context.Background(), func(ctx context.Context, tx order.CheckoutTx) error {
		_, err := tx.ReserveStock(ctx, "p1", 2)
		return err
	})

	var insufficient *catalog.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, insufficient.Requested)
	assert.Equal(t, 1, insufficient.Available)
	assert.Equal(t, "Widget p1", insufficient.ProductName)

	// The failed unit of work left stock untouched.
	p, err := NewCatalogRepository(store).ProductByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.StockQty)
}

func TestReserveStockMissingProduct(t *testing.T) {
	store := openTestStore(t)

	repo := NewOrderRepository(store)
	err := repo.Checkout(context.Background(), func(ctx context.Context, tx order.CheckoutTx) error {
		_, err := tx.ReserveStock(ctx, "ghost", 1)
		return err
	})
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

// Stock monotonicity: N concurrent reservations of q units against stock S
// admit exactly floor(S/q) winners and never drive the counter negative.
func TestReserveStockConcurrent(t *testing.T) {
	const (
		initialStock = 5
		perAttempt   = 2
		attempts     = 8
	)

	store := openTestStore(t)
	vendor := seedUser(t, store, "v1", "vendor", identity.CapVendor)
	seedProduct(t, store, vendor.ID, "p1", "9.99", initialStock)

	repo := NewOrderRepository(store)

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.Checkout(context.Background(), func(ctx context.Context, tx order.CheckoutTx) error {
				_, err := tx.ReserveStock(ctx, "p1", perAttempt)
				return err
			})
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *catalog.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
	}

	assert.Equal(t, initialStock/perAttempt, succeeded)

	p, err := NewCatalogRepository(store).ProductByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, initialStock-succeeded*perAttempt, p.StockQty)
	assert.GreaterOrEqual(t, p.StockQty, 0)
}

// Checkout atomicity: a failing line rolls back every reservation made
// earlier in the same unit of work, and no order rows survive.
func TestCheckoutRollsBackAllOrNothing(t *testing.T) {
	store := openTestStore(t)
	vendor := seedUser(t, store, "v1", "vendor", identity.CapVendor)
	buyer := seedUser(t, store, "b1", "buyer", identity.CapBuyer)
	seedProduct(t, store, vendor.ID, "p1", "5.00", 10)
	seedProduct(t, store, vendor.ID, "p2", "7.00", 0)

	repo := NewOrderRepository(store)
	err := repo.Checkout(context.Background(), func(ctx context.Context, tx order.CheckoutTx) error {
		if _, err := tx.ReserveStock(ctx, "p1", 3); err != nil {
			return err
		}
		o, err := order.New("o1", buyer.ID, []order.Item{
			{ProductID: "p1", ProductName: "Widget p1", StoreID: "store-p1", StoreName: "Shop p1",
				Quantity: 3, UnitPrice: decimal.RequireFromString("5.00")},
		})
		if err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		// Second line fails the whole unit of work.
		_, err = tx.ReserveStock(ctx, "p2", 1)
		return err
	})

	var insufficient *catalog.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	p1, err := NewCatalogRepository(store).ProductByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p1.StockQty, "reservation from aborted checkout must not survive")

	_, err = repo.OrderByID(context.Background(), "o1")
	assert.ErrorIs(t, err, order.ErrNotFound, "no orphan order after abort")
}

func TestCheckoutPersistsOrderWithItems(t *testing.T) {
	store := openTestStore(t)
	vendor := seedUser(t, store, "v1", "vendor", identity.CapVendor)
	buyer := seedUser(t, store, "b1", "buyer", identity.CapBuyer)
	seedProduct(t, store, vendor.ID, "p1", "9.99", 3)

	repo := NewOrderRepository(store)
	err := repo.Checkout(context.Background(), func(ctx context.Context, tx order.CheckoutTx) error {
		if _, err := tx.ReserveStock(ctx, "p1", 2); err != nil {
			return err
		}
		o, err := order.New("o1", buyer.ID, []order.Item{
			{ProductID: "p1", ProductName: "Widget p1", StoreID: "store-p1", StoreName: "Shop p1",
				Quantity: 2, UnitPrice: decimal.RequireFromString("9.99")},
		})
		if err != nil {
			return err
		}
		return tx.InsertOrder(ctx, o)
	})
	require.NoError(t, err)

	got, err := repo.OrderByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, buyer.ID, got.BuyerID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "9.99", got.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "19.98", got.GrandTotal().StringFixed(2))

	purchased, err := repo.HasPurchased(context.Background(), buyer.ID, "p1")
	require.NoError(t, err)
	assert.True(t, purchased)

	purchased, err = repo.HasPurchased(context.Background(), buyer.ID, "other")
	require.NoError(t, err)
	assert.False(t, purchased)
}

// unit_price snapshots survive later price edits.
func TestOrderItemPriceSnapshotImmutable(t *testing.T) {
	store := openTestStore(t)
	vendor := seedUser(t, store, "v1", "vendor", identity.CapVendor)
	buyer := seedUser(t, store, "b1", "buyer", identity.CapBuyer)
	product := seedProduct(t, store, vendor.ID, "p1", "9.99", 3)

	orders := NewOrderRepository(store)
	require.NoError(t, orders.Checkout(context.Background(), func(ctx context.Context, tx order.CheckoutTx) error {
		if _, err := tx.ReserveStock(ctx, "p1", 1); err != nil {
			return err
		}
		o, err := order.New("o1", buyer.ID, []order.Item{
			{ProductID: "p1", ProductName: product.Name, StoreID: product.StoreID, StoreName: "Shop p1",
				Quantity: 1, UnitPrice: product.Price},
		})
		if err != nil {
			return err
		}
		return tx.InsertOrder(ctx, o)
	}))

	catalogRepo := NewCatalogRepository(store)
	product.Price = decimal.RequireFromString("14.99")
	require.NoError(t, catalogRepo.UpdateProduct(context.Background(), product))

	got, err := orders.OrderByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "9.99", got.Items[0].UnitPrice.StringFixed(2))
}

func TestCheckoutCallbackErrorPropagates(t *testing.T) {
	store := openTestStore(t)
	repo := NewOrderRepository(store)

	sentinel := errors.New("boom")
	err := repo.Checkout(context.Background(), func(ctx context.Context, tx order.CheckoutTx) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}
