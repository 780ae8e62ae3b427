package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossvale/marketplace/internal/domain/identity"
	domain "github.com/mossvale/marketplace/internal/domain/session"
)

func TestSessionRoundTrip(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	sess := domain.New("s1")
	sess.UserID = "u1"
	sess.Cart.Add("p1")
	sess.Cart.Add("p1")
	require.NoError(t, repo.Create(ctx, sess))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 2, got.Cart.Quantity("p1"))
}

func TestGetUnknownSession(t *testing.T) {
	repo := NewSessionRepository()

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveRequiresExisting(t *testing.T) {
	repo := NewSessionRepository()

	err := repo.Save(context.Background(), domain.New("never-created"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Mutating a retrieved session must not leak into the stored copy until
// Save is called.
func TestGetReturnsIsolatedCopy(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	sess := domain.New("s1")
	sess.Cart.Add("p1")
	sess.Reset = &identity.ResetBinding{UserID: "u1", TokenHash: "abc"}
	require.NoError(t, repo.Create(ctx, sess))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	got.Cart.Add("p1")
	got.Reset.TokenHash = "tampered"

	stored, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Cart.Quantity("p1"))
	assert.Equal(t, "abc", stored.Reset.TokenHash)

	// Save publishes the mutation.
	require.NoError(t, repo.Save(ctx, got))
	stored, err = repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Cart.Quantity("p1"))
}

func TestDelete(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.New("s1")))
	require.NoError(t, repo.Delete(ctx, "s1"))

	_, err := repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Deleting an absent session is a no-op.
	assert.NoError(t, repo.Delete(ctx, "s1"))
}
