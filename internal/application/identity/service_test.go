package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/mossvale/marketplace/internal/domain/identity"
	"github.com/mossvale/marketplace/internal/infrastructure/id"
	"github.com/mossvale/marketplace/internal/infrastructure/sqlite"
)

func setup(t *testing.T) *Service {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewService(sqlite.NewIdentityRepository(store), id.NewUUIDGenerator())
}

func TestRegisterValidation(t *testing.T) {
	svc := setup(t)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "", Password: "pw"})
	assert.ErrorIs(t, err, ErrCredentialsRequired)

	_, err = svc.Register(context.Background(), RegisterInput{Username: "alice", Password: ""})
	assert.ErrorIs(t, err, ErrCredentialsRequired)

	_, err = svc.Register(context.Background(), RegisterInput{Username: "alice", Password: "pw", AccountType: "admin"})
	assert.ErrorIs(t, err, ErrInvalidAccountType)
}

func TestRegisterCapabilities(t *testing.T) {
	svc := setup(t)

	buyer, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice", Email: "alice@example.com", Password: "pw",
	})
	require.NoError(t, err)
	assert.True(t, buyer.Can(domain.CapBuyer))
	assert.False(t, buyer.Can(domain.CapVendor))

	vendor, err := svc.Register(context.Background(), RegisterInput{
		Username: "bob", Email: "bob@example.com", Password: "pw", AccountType: "vendor",
	})
	require.NoError(t, err)
	assert.True(t, vendor.Can(domain.CapVendor))
	assert.False(t, vendor.Can(domain.CapBuyer))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := setup(t)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{Username: "alice", Password: "other"})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestAuthenticate(t *testing.T) {
	svc := setup(t)

	registered, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)

	user, err := svc.Authenticate(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	// Password hash never round-trips as plain text.
	assert.NotEqual(t, []byte("s3cret"), user.PasswordHash)

	_, err = svc.Authenticate(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown usernames collapse into the same error as wrong passwords.
	_, err = svc.Authenticate(context.Background(), "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserByIDEmpty(t *testing.T) {
	svc := setup(t)

	_, err := svc.UserByID(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
