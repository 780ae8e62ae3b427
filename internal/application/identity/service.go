package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/mossvale/marketplace/internal/domain/identity"
	"github.com/mossvale/marketplace/internal/pkg/logging"
)

var (
	ErrCredentialsRequired = errors.New("identity: username and password are required")
	ErrInvalidAccountType  = errors.New("identity: invalid account type")
	ErrInvalidCredentials  = errors.New("identity: invalid credentials")
)

type IDGenerator interface {
	NewID() string
}

type Service struct {
	users domain.Repository
	idGen IDGenerator
}

func NewService(users domain.Repository, idGen IDGenerator) *Service {
	return &Service{users: users, idGen: idGen}
}

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	AccountType string // "buyer" or "vendor"
}

// Register creates a new account with a typed capability derived from the
// requested account type.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return nil, ErrCredentialsRequired
	}

	var caps domain.Capability
	switch strings.ToLower(strings.TrimSpace(input.AccountType)) {
	case "", "buyer":
		caps = domain.CapBuyer
	case "vendor":
		caps = domain.CapVendor
	default:
		return nil, ErrInvalidAccountType
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	user := domain.NewUser(s.idGen.NewID(), username, strings.TrimSpace(input.Email), hash, caps)
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("user_registered",
		zap.String("user_id", user.ID),
		zap.String("account_type", input.AccountType),
	)
	return user, nil
}

// Authenticate verifies a username/password pair. Unknown usernames and
// wrong passwords collapse into one error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.UserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) UserByID(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrUserNotFound
	}
	return s.users.UserByID(ctx, id)
}
