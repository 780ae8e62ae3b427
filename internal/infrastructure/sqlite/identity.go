package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mossvale/marketplace/internal/domain/identity"
)

// IdentityRepository implements identity.Repository over the shared store.
type IdentityRepository struct {
	store *Store
}

func NewIdentityRepository(store *Store) *IdentityRepository {
	return &IdentityRepository{store: store}
}

func (r *IdentityRepository) CreateUser(ctx context.Context, u *identity.User) error {
	_, err := r.store.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, capabilities, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, int(u.Capabilities), toMillis(u.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrUsernameTaken
		}
		return wrapStoreErr("create user", err)
	}
	return nil
}

func (r *IdentityRepository) UserByID(ctx context.Context, id string) (*identity.User, error) {
	return r.userBy(ctx, `WHERE id = ?`, id)
}

func (r *IdentityRepository) UserByUsername(ctx context.Context, username string) (*identity.User, error) {
	return r.userBy(ctx, `WHERE username = ?`, username)
}

func (r *IdentityRepository) UserByEmail(ctx context.Context, email string) (*identity.User, error) {
	u, err := r.userBy(ctx, `WHERE email = ? ORDER BY created_at LIMIT 1`, email)
	if errors.Is(err, identity.ErrUserNotFound) {
		return nil, identity.ErrUnknownEmail
	}
	return u, err
}

func (r *IdentityRepository) userBy(ctx context.Context, where string, arg any) (*identity.User, error) {
	row := r.store.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, capabilities, created_at FROM users `+where, arg)

	var (
		u         identity.User
		caps      int
		createdAt int64
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &caps, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrUserNotFound
	}
	if err != nil {
		return nil, wrapStoreErr("scan user", err)
	}
	u.Capabilities = identity.Capability(caps)
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

// CreateResetToken stores a fresh token and removes any outstanding token
// for the same user in the same unit of work, keeping at most one live
// token per user.
func (r *IdentityRepository) CreateResetToken(ctx context.Context, t *identity.ResetToken) error {
	return r.store.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM reset_tokens WHERE user_id = ?`, t.UserID,
		); err != nil {
			return wrapStoreErr("invalidate prior tokens", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reset_tokens (id, user_id, token_hash, expires_at, used)
			 VALUES (?, ?, ?, ?, 0)`,
			t.ID, t.UserID, t.TokenHash, toMillis(t.ExpiresAt),
		); err != nil {
			return wrapStoreErr("create reset token", err)
		}
		return nil
	})
}

func (r *IdentityRepository) ResetTokenByHash(ctx context.Context, tokenHash string) (*identity.ResetToken, error) {
	row := r.store.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, used FROM reset_tokens WHERE token_hash = ?`,
		tokenHash)

	var (
		t         identity.ResetToken
		expiresAt int64
		used      int
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &expiresAt, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrInvalidToken
	}
	if err != nil {
		return nil, wrapStoreErr("scan reset token", err)
	}
	if used != 0 {
		return nil, identity.ErrInvalidToken
	}
	// Stored hashes come back through an index lookup; re-compare in
	// constant time before trusting the match.
	if !identity.HashEqual(t.TokenHash, tokenHash) {
		return nil, identity.ErrInvalidToken
	}
	t.ExpiresAt = fromMillis(expiresAt)
	t.Status = identity.TokenIssued
	return &t, nil
}

func (r *IdentityRepository) DeleteResetToken(ctx context.Context, id string) error {
	if _, err := r.store.db.ExecContext(ctx,
		`DELETE FROM reset_tokens WHERE id = ?`, id,
	); err != nil {
		return wrapStoreErr("delete reset token", err)
	}
	return nil
}

// RedeemToken flips the token's used flag and updates the user's
// credential as one unit of work. The flip is a guarded UPDATE: of two
// racing redemptions exactly one sees an affected row.
func (r *IdentityRepository) RedeemToken(ctx context.Context, tokenHash string, now time.Time, passwordHash []byte) error {
	return r.store.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE reset_tokens SET used = 1 WHERE token_hash = ? AND used = 0 AND expires_at > ?`,
			tokenHash, toMillis(now),
		)
		if err != nil {
			return wrapStoreErr("redeem token", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return wrapStoreErr("redeem token", err)
		}

		if affected == 0 {
			// Distinguish the loser of a race from an expired horizon.
			var expiresAt int64
			var used int
			row := tx.QueryRowContext(ctx,
				`SELECT expires_at, used FROM reset_tokens WHERE token_hash = ?`, tokenHash)
			err := row.Scan(&expiresAt, &used)
			if errors.Is(err, sql.ErrNoRows) {
				return identity.ErrInvalidToken
			}
			if err != nil {
				return wrapStoreErr("redeem token lookup", err)
			}
			if used != 0 {
				return identity.ErrAlreadyUsed
			}
			return identity.ErrTokenExpired
		}

		var userID string
		row := tx.QueryRowContext(ctx,
			`SELECT user_id FROM reset_tokens WHERE token_hash = ?`, tokenHash)
		if err := row.Scan(&userID); err != nil {
			return wrapStoreErr("redeem token user", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID,
		); err != nil {
			return wrapStoreErr("set password", err)
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
