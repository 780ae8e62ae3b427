package memory

import (
	"context"
	"sync"

	domain "github.com/mossvale/marketplace/internal/domain/session"
)

// SessionRepository keeps transient per-browser session state in process
// memory. Sessions are intentionally not durable; carts and reset bindings
// die with the process.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*domain.Session),
	}
}

func (r *SessionRepository) Create(ctx context.Context, sess *domain.Session) error {
	_ = ctx
	if sess == nil || sess.ID == "" {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneSession(sess), nil
}

func (r *SessionRepository) Save(ctx context.Context, sess *domain.Session) error {
	_ = ctx
	if sess == nil || sess.ID == "" {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sess.ID]; !ok {
		return domain.ErrNotFound
	}
	r.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

func cloneSession(sess *domain.Session) *domain.Session {
	if sess == nil {
		return nil
	}
	clone := *sess
	clone.Cart = sess.Cart.Clone()
	if sess.Reset != nil {
		binding := *sess.Reset
		clone.Reset = &binding
	}
	return &clone
}
