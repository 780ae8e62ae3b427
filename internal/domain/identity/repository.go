package identity

import (
	"context"
	"time"
)

type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	UserByID(ctx context.Context, id string) (*User, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)

	// CreateResetToken stores a freshly issued token and invalidates any
	// previously outstanding token for the same user, so at most one live
	// token exists per user.
	CreateResetToken(ctx context.Context, token *ResetToken) error

	// ResetTokenByHash resolves a still-issued token by its hash. A used
	// or unknown hash reports ErrInvalidToken.
	ResetTokenByHash(ctx context.Context, tokenHash string) (*ResetToken, error)

	// DeleteResetToken removes an invalid token eagerly to bound storage
	// growth.
	DeleteResetToken(ctx context.Context, id string) error

	// RedeemToken atomically flips the token's used flag and sets the
	// user's credential in one unit of work. The flip is guarded: of two
	// racing calls exactly one succeeds, the loser reports ErrAlreadyUsed
	// (or ErrTokenExpired if the horizon passed first).
	RedeemToken(ctx context.Context, tokenHash string, now time.Time, passwordHash []byte) error
}
