// Package auth implements registration and credential checking.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// DefaultCategories is seeded for every new user at registration, in this
// order.
var DefaultCategories = []string{
	"Food", "Transportation", "Housing", "Utilities", "Healthcare",
	"Entertainment", "Education", "Shopping", "Personal Care", "Debt Payments",
	"Savings", "Gifts & Donations", "Miscellaneous",
}

type Service struct {
	users  storage.UserStore
	logger *log.Logger
}

func NewService(users storage.UserStore, logger *log.Logger) *Service {
	return &Service{
		users:  users,
		logger: logger.WithComponent(log.ComponentAuth),
	}
}

// Registration is the validated input for Register.
type Registration struct {
	Username string
	Email    string
	Password string
}

func (r Registration) validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return core.Validationf("missing field %q", "username")
	}
	if strings.TrimSpace(r.Email) == "" {
		return core.Validationf("missing field %q", "email")
	}
	if r.Password == "" {
		return core.Validationf("missing field %q", "password")
	}
	return nil
}

// Register creates the user and their default categories in one unit of work.
// A duplicate username surfaces core.ErrConflict.
func (s *Service) Register(ctx context.Context, reg Registration) (core.User, error) {
	if err := reg.validate(); err != nil {
		return core.User{}, err
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUserWithCategories(ctx, core.User{
		Username:     strings.TrimSpace(reg.Username),
		Email:        strings.TrimSpace(reg.Email),
		PasswordHash: hash,
	}, DefaultCategories)
	if err != nil {
		return core.User{}, err
	}

	s.logger.InfoContext(ctx, "User registered",
		log.FieldUserID, user.ID,
		log.FieldUsername, user.Username,
		"categories_seeded", len(DefaultCategories))
	return user, nil
}

// Authenticate verifies the credentials. Unknown username and wrong password
// return the same core.ErrAuth so callers cannot tell which one failed.
func (s *Service) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return core.User{}, core.ErrAuth
	}

	user, err := s.users.FindUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrAuth
	}
	if err != nil {
		return core.User{}, fmt.Errorf("find user: %w", err)
	}

	if !CheckPassword(password, user.PasswordHash) {
		s.logger.WarnContext(ctx, "Password mismatch", log.FieldUsername, username)
		return core.User{}, core.ErrAuth
	}
	return user, nil
}
