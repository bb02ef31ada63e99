// Package account handles sign up, login and session tokens.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"reasy/internal/db"
	"reasy/internal/metrics"
	"reasy/internal/model"
)

var (
	ErrInvalidInput       = errors.New("username and password are required")
	ErrInvalidRole        = errors.New("unknown account type")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrUsernameTaken      = db.ErrUsernameTaken
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrRoleMismatch       = errors.New("invalid user type for selected login mode")
)

// Store is the user persistence the account service needs.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

type Service struct {
	store  Store
	cost   int
	logger *zerolog.Logger
}

// NewService uses bcrypt.DefaultCost when cost is out of range.
func NewService(store Store, cost int, logger *zerolog.Logger) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{store: store, cost: cost, logger: logger}
}

// HashPassword returns the bcrypt hash of password.
func (s *Service) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// SignUp creates an account of the given role.
func (s *Service) SignUp(ctx context.Context, username, password, confirm string, role model.Role) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if password != confirm {
		return nil, ErrPasswordMismatch
	}

	hashed, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{Username: username, PasswordHash: hashed, Role: role}
	if err := s.store.CreateUser(ctx, user); err != nil {
		metrics.IncAuth("signup", "rejected")
		return nil, err
	}

	metrics.IncAuth("signup", "ok")
	s.logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Str("role", string(role)).Msg("account created")
	return user, nil
}

// Login checks credentials and that the account matches the selected role.
func (s *Service) Login(ctx context.Context, username, password string, role model.Role) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, db.ErrNotFound) {
		metrics.IncAuth("login", "rejected")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.IncAuth("login", "rejected")
		s.logger.Warn().Str("username", username).Msg("login failed")
		return nil, ErrInvalidCredentials
	}
	if user.Role != role {
		metrics.IncAuth("login", "rejected")
		return nil, ErrRoleMismatch
	}

	metrics.IncAuth("login", "ok")
	return user, nil
}
