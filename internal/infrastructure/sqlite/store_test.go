package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mossvale/marketplace/internal/domain/catalog"
	"github.com/mossvale/marketplace/internal/domain/identity"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func seedUser(t *testing.T, store *Store, id, username string, caps identity.Capability) *identity.User {
	t.Helper()
	user := identity.NewUser(id, username, username+"@example.com", []byte("hash"), caps)
	require.NoError(t, NewIdentityRepository(store).CreateUser(context.Background(), user))
	return user
}

func seedProduct(t *testing.T, store *Store, ownerID, productID string, price string, stock int) *catalog.Product {
	t.Helper()
	repo := NewCatalogRepository(store)
	ctx := context.Background()

	st, err := catalog.NewStore("store-"+productID, ownerID, "Shop "+productID)
	require.NoError(t, err)
	require.NoError(t, repo.CreateStore(ctx, st))

	p, err := catalog.NewProduct(productID, st.ID, "Widget "+productID, "",
		decimal.RequireFromString(price), stock)
	require.NoError(t, err)
	require.NoError(t, repo.CreateProduct(ctx, p))
	return p
}
