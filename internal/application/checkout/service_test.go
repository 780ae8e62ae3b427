package checkout

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossvale/marketplace/internal/domain/catalog"
	"github.com/mossvale/marketplace/internal/domain/identity"
	"github.com/mossvale/marketplace/internal/domain/order"
	"github.com/mossvale/marketplace/internal/domain/session"
	"github.com/mossvale/marketplace/internal/infrastructure/id"
	"github.com/mossvale/marketplace/internal/infrastructure/memory"
	"github.com/mossvale/marketplace/internal/infrastructure/metrics"
	"github.com/mossvale/marketplace/internal/infrastructure/sqlite"
)

type sentMail struct {
	subject, body, recipient string
}

type captureSink struct {
	ch chan sentMail
}

func newCaptureSink() *captureSink {
	return &captureSink{ch: make(chan sentMail, 8)}
}

func (s *captureSink) Send(ctx context.Context, subject, body, recipient string) error {
	s.ch <- sentMail{subject: subject, body: body, recipient: recipient}
	return nil
}

func (s *captureSink) wait(t *testing.T) sentMail {
	t.Helper()
	select {
	case m := <-s.ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no notification delivered")
		return sentMail{}
	}
}

type fixture struct {
	svc      *Service
	store    *sqlite.Store
	sessions session.Repository
	sink     *captureSink
	catalog  *sqlite.CatalogRepository
	orders   *sqlite.OrderRepository
}

func setup(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sessions := memory.NewSessionRepository()
	sink := newCaptureSink()
	catalogRepo := sqlite.NewCatalogRepository(store)
	orderRepo := sqlite.NewOrderRepository(store)

	svc := NewService(orderRepo, sessions, sink, id.NewUUIDGenerator(),
		metrics.NewNop(), 500*time.Millisecond)

	return &fixture{
		svc:      svc,
		store:    store,
		sessions: sessions,
		sink:     sink,
		catalog:  catalogRepo,
		orders:   orderRepo,
	}
}

func (f *fixture) seedBuyer(t *testing.T, id, username string) *identity.User {
	t.Helper()
	user := identity.NewUser(id, username, username+"@example.com", []byte("hash"), identity.CapBuyer)
	require.NoError(t, sqlite.NewIdentityRepository(f.store).CreateUser(context.Background(), user))
	return user
}

func (f *fixture) seedProduct(t *testing.T, productID, storeName, price string, stock int) *catalog.Product {
	t.Helper()
	ctx := context.Background()

	owner := identity.NewUser("vendor-"+productID, "vendor-"+productID, "", []byte("hash"), identity.CapVendor)
	require.NoError(t, sqlite.NewIdentityRepository(f.store).CreateUser(ctx, owner))

	st, err := catalog.NewStore("store-"+productID, owner.ID, storeName)
	require.NoError(t, err)
	require.NoError(t, f.catalog.CreateStore(ctx, st))

	p, err := catalog.NewProduct(productID, st.ID, "Widget "+productID, "",
		decimal.RequireFromString(price), stock)
	require.NoError(t, err)
	require.NoError(t, f.catalog.CreateProduct(ctx, p))
	return p
}

func (f *fixture) newSession(t *testing.T, userID string) *session.Session {
	t.Helper()
	sess := session.New("sess-" + userID)
	sess.UserID = userID
	require.NoError(t, f.sessions.Create(context.Background(), sess))
	return sess
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := setup(t)
	buyer := f.seedBuyer(t, "b1", "alice")
	sess := f.newSession(t, buyer.ID)

	_, err := f.svc.Checkout(context.Background(), buyer, sess)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutRequiresBuyerCapability(t *testing.T) {
	f := setup(t)
	vendor := identity.NewUser("v1", "vendor", "v@example.com", []byte("hash"), identity.CapVendor)
	sess := f.newSession(t, vendor.ID)
	sess.Cart.Add("p1")

	_, err := f.svc.Checkout(context.Background(), vendor, sess)
	assert.ErrorIs(t, err, identity.ErrForbidden)
}

func TestCheckoutSuccess(t *testing.T) {
	f := setup(t)
	buyer := f.seedBuyer(t, "b1", "alice")
	f.seedProduct(t, "p1", "Alpha Goods", "9.99", 3)
	f.seedProduct(t, "p2", "Beta Goods", "1.50", 10)

	sess := f.newSession(t, buyer.ID)
	sess.Cart.Add("p1")
	sess.Cart.Add("p1")
	sess.Cart.Add("p2")
	require.NoError(t, f.sessions.Save(context.Background(), sess))

	placed, err := f.svc.Checkout(context.Background(), buyer, sess)
	require.NoError(t, err)

	require.Len(t, placed.Items, 2)
	assert.Equal(t, "21.48", placed.GrandTotal().StringFixed(2))

	// Durable order with price snapshots.
	got, err := f.orders.OrderByID(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, buyer.ID, got.BuyerID)
	assert.Equal(t, "21.48", got.GrandTotal().StringFixed(2))

	// Stock settled.
	p1, err := f.catalog.ProductByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p1.StockQty)

	// Cart cleared only after commit, in the stored session too.
	stored, err := f.sessions.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, stored.Cart.IsEmpty())
}

func TestCheckoutInvoiceDelivery(t *testing.T) {
	f := setup(t)
	buyer := f.seedBuyer(t, "b1", "alice")
	f.seedProduct(t, "p1", "Alpha Goods", "9.99", 3)

	sess := f.newSession(t, buyer.ID)
	sess.Cart.Add("p1")
	sess.Cart.Add("p1")

	placed, err := f.svc.Checkout(context.Background(), buyer, sess)
	require.NoError(t, err)

	mail := f.sink.wait(t)
	assert.Equal(t, "alice@example.com", mail.recipient)
	assert.Contains(t, mail.subject, placed.ID)
	assert.Contains(t, mail.body, "Widget p1 (Store: Alpha Goods) x 2 @ 9.99 = 19.98")
	assert.Contains(t, mail.body, "Total: 19.98")
}

func TestCheckoutProductUnavailable(t *testing.T) {
	f := setup(t)
	buyer := f.seedBuyer(t, "b1", "alice")
	product := f.seedProduct(t, "p1", "Alpha Goods", "9.99", 3)

	product.Active = false
	require.NoError(t, f.catalog.UpdateProduct(context.Background(), product))

	sess := f.newSession(t, buyer.ID)
	sess.Cart.Add("p1")

	_, err := f.svc.Checkout(context.Background(), buyer, sess)

	var unavailable *catalog.ProductUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "p1", unavailable.ProductID)
}

func TestCheckoutMissingProduct(t *testing.T) {
	f := setup(t)
	buyer := f.seedBuyer(t, "b1", "alice")

	sess := f.newSession(t, buyer.ID)
	sess.Cart.Add("ghost")

	_, err := f.svc.Checkout(context.Background(), buyer, sess)

	var unavailable *catalog.ProductUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

// A failing line aborts the whole checkout: earlier reservations roll
// back and the cart keeps its contents.
func TestCheckoutAbortLeavesNoTrace(t *testing.T) {
	f := setup(t)
	buyer := f.seedBuyer(t, "b1", "alice")
	f.seedProduct(t, "a-first", "Alpha Goods", "5.00", 10)
	f.seedProduct(t, "z-last", "Zeta Goods", "7.00", 1)

	sess := f.newSession(t, buyer.ID)
	sess.Cart.Add("a-first")
	for i := 0; i < 2; i++ {
		sess.Cart.Add("z-last")
	}
	require.NoError(t, f.sessions.Save(context.Background(), sess))

	_, err := f.svc.Checkout(context.Background(), buyer, sess)

	var insufficient *catalog.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, insufficient.Requested)
	assert.Equal(t, 1, insufficient.Available)

	first, err := f.catalog.ProductByID(context.Background(), "a-first")
	require.NoError(t, err)
	assert.Equal(t, 10, first.StockQty, "earlier line's reservation must roll back")

	orders, err := f.orders.OrdersByBuyer(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)

	stored, err := f.sessions.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.False(t, stored.Cart.IsEmpty(), "failed checkout keeps the cart")
}

// Two buyers race for the same stock: product has 3 units, each wants 2.
// Exactly one checkout wins (total 19.98, stock left 1); the loser sees
// the shortfall and changes nothing.
func TestCheckoutConcurrentBuyers(t *testing.T) {
	f := setup(t)
	f.seedProduct(t, "p1", "Alpha Goods", "9.99", 3)

	buyers := []*identity.User{
		f.seedBuyer(t, "b1", "alice"),
		f.seedBuyer(t, "b2", "bob"),
	}
	sessions := make([]*session.Session, len(buyers))
	for i, b := range buyers {
		sessions[i] = f.newSession(t, b.ID)
		sessions[i].Cart.Add("p1")
		sessions[i].Cart.Add("p1")
		require.NoError(t, f.sessions.Save(context.Background(), sessions[i]))
	}

	var wg sync.WaitGroup
	results := make([]error, len(buyers))
	placed := make([]*order.Order, len(buyers))
	for i := range buyers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			placed[i], results[i] = f.svc.Checkout(context.Background(), buyers[i], sessions[i])
		}(i)
	}
	wg.Wait()

	var winner *order.Order
	wins := 0
	for i, err := range results {
		if err == nil {
			wins++
			winner = placed[i]
			continue
		}
		var insufficient *catalog.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, 2, insufficient.Requested)
		assert.LessOrEqual(t, insufficient.Available, 1)
	}
	require.Equal(t, 1, wins, "exactly one concurrent checkout may succeed")
	assert.Equal(t, "19.98", winner.GrandTotal().StringFixed(2))

	p, err := f.catalog.ProductByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.StockQty)
}

func TestComposeInvoice(t *testing.T) {
	buyer := identity.NewUser("b1", "alice", "alice@example.com", nil, identity.CapBuyer)
	o, err := order.New("o1", buyer.ID, []order.Item{
		{ProductID: "p1", ProductName: "Widget", StoreName: "Alpha Goods",
			Quantity: 2, UnitPrice: decimal.RequireFromString("9.99")},
	})
	require.NoError(t, err)

	subject, body := ComposeInvoice(buyer, o)
	assert.Equal(t, "Invoice for Order #o1", subject)
	assert.Contains(t, body, "Hi alice,")
	assert.Contains(t, body, "- Widget (Store: Alpha Goods) x 2 @ 9.99 = 19.98")
	assert.Contains(t, body, "Total: 19.98")
}
