package catalog

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrStoreNotFound = errors.New("catalog: store not found")
	ErrNotOwner      = errors.New("catalog: caller does not own this store")
	ErrNameRequired  = errors.New("catalog: name is required")
)

type Store struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
}

func NewStore(id, ownerID, name string) (*Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	return &Store{
		ID:        id,
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// OwnedBy is the ownership predicate gating every vendor mutation.
func (s *Store) OwnedBy(userID string) bool {
	return s.OwnerID == userID
}
