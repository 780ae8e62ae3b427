package session

import (
	"context"
	"errors"
	"time"

	"github.com/mossvale/marketplace/internal/domain/cart"
	"github.com/mossvale/marketplace/internal/domain/identity"
)

var ErrNotFound = errors.New("session: not found")

// Session is the explicit request-scoped state that replaces ambient
// per-process session dictionaries: one record per browser session holding
// the cart, the authenticated identity (if any), and an in-flight
// password-reset binding (if any).
type Session struct {
	ID        string
	UserID    string
	Cart      cart.Cart
	Reset     *identity.ResetBinding
	CreatedAt time.Time
}

func New(id string) *Session {
	return &Session{
		ID:        id,
		Cart:      cart.New(),
		CreatedAt: time.Now().UTC(),
	}
}

func (s *Session) Authenticated() bool {
	return s.UserID != ""
}

type Repository interface {
	// Create registers a new empty session.
	Create(ctx context.Context, sess *Session) error
	// Get returns an independent copy of the session.
	Get(ctx context.Context, id string) (*Session, error)
	// Save writes the session back, replacing the stored copy.
	Save(ctx context.Context, sess *Session) error
	// Delete tears the session down (logout or expiry).
	Delete(ctx context.Context, id string) error
}
