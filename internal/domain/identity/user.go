package identity

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound  = errors.New("identity: user not found")
	ErrUsernameTaken = errors.New("identity: username already exists")
	ErrUnknownEmail  = errors.New("identity: no user with that email")
	ErrForbidden     = errors.New("identity: operation not permitted")
)

// Capability is a typed role attached to an authenticated identity,
// checked at the boundary of each operation.
type Capability uint8

const (
	CapBuyer Capability = 1 << iota
	CapVendor
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	Capabilities Capability
	CreatedAt    time.Time
}

func NewUser(id, username, email string, passwordHash []byte, caps Capability) *User {
	return &User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Capabilities: caps,
		CreatedAt:    time.Now().UTC(),
	}
}

func (u *User) Can(cap Capability) bool {
	return u != nil && u.Capabilities&cap != 0
}
