package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidToken     = errors.New("identity: reset token is not valid")
	ErrTokenExpired     = errors.New("identity: reset token has expired")
	ErrAlreadyUsed      = errors.New("identity: reset token was already used")
	ErrPasswordMismatch = errors.New("identity: passwords do not match")
)

// TokenStatus is the reset-token lifecycle state. Issued is the only
// non-terminal state; Redeemed, Expired and Invalidated admit no further
// transitions.
type TokenStatus string

const (
	TokenIssued      TokenStatus = "issued"
	TokenRedeemed    TokenStatus = "redeemed"
	TokenExpired     TokenStatus = "expired"
	TokenInvalidated TokenStatus = "invalidated"
)

// ResetToken is a single-use, time-boxed password-reset capability. Only
// the hash of the raw secret is ever held here; the raw value exists once,
// in the issuance response.
type ResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	Status    TokenStatus
}

func NewResetToken(id, userID, tokenHash string, expiresAt time.Time) *ResetToken {
	return &ResetToken{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UTC(),
		Status:    TokenIssued,
	}
}

// ExpiredAt reports the expiry boundary: a token is expired at or after
// its expiry instant, and live strictly before it.
func (t *ResetToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Live reports whether the token could still authorize a redemption.
func (t *ResetToken) Live(now time.Time) bool {
	return t.Status == TokenIssued && !t.ExpiredAt(now)
}

func (t *ResetToken) transition(to TokenStatus) error {
	if t.Status != TokenIssued {
		return fmt.Errorf("identity: token %s is terminal in state %s", t.ID, t.Status)
	}
	t.Status = to
	return nil
}

func (t *ResetToken) Redeem() error     { return t.transition(TokenRedeemed) }
func (t *ResetToken) Expire() error     { return t.transition(TokenExpired) }
func (t *ResetToken) Invalidate() error { return t.transition(TokenInvalidated) }

// ResetBinding is the transient server-side bridge between the "token
// verified" step and the "set new password" step, so the raw secret is
// never re-transmitted in a form field.
type ResetBinding struct {
	UserID    string
	TokenHash string
}

const rawTokenBytes = 24

// NewRawToken generates the high-entropy secret embedded in the reset
// link. It is returned to the caller exactly once and never persisted.
func NewRawToken() (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("identity: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken derives the at-rest form of a raw token value.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// HashEqual compares two token hashes in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
