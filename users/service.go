// Package users manages accounts: registration, the caller's own profile and
// deactivation. Accounts are never removed; deactivation clears the active flag,
// after which the account can no longer log in or use its tokens.
package users

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/store"
)

type Service struct {
	users      store.UserStore
	bcryptCost int
}

func NewService(users store.UserStore, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{users: users, bcryptCost: bcryptCost}
}

// Register creates an active account. Uniqueness has already been checked by the
// validation chain; the store's unique constraints catch a concurrent duplicate.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*store.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, apperror.NewInternalError("failed to hash password", err)
	}

	user := &store.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Active:       true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, mapStoreError("failed to create user", err)
	}
	return user, nil
}

func (s *Service) Profile(ctx context.Context, userID string) (*store.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, mapStoreError("failed to load user", err)
	}
	return user, nil
}

// Update replaces username, first and last name, and the password when one is given.
func (s *Service) Update(ctx context.Context, userID string, req UpdateUserRequest) (*store.User, error) {
	upd := store.UserUpdate{
		Username:  &req.Username,
		FirstName: &req.FirstName,
		LastName:  &req.LastName,
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.bcryptCost)
		if err != nil {
			return nil, apperror.NewInternalError("failed to hash password", err)
		}
		h := string(hash)
		upd.PasswordHash = &h
	}

	user, err := s.users.UpdateUser(ctx, userID, upd)
	if err != nil {
		return nil, mapStoreError("failed to update user", err)
	}
	return user, nil
}

func (s *Service) Deactivate(ctx context.Context, userID string) error {
	inactive := false
	if _, err := s.users.UpdateUser(ctx, userID, store.UserUpdate{Active: &inactive}); err != nil {
		return mapStoreError("failed to deactivate user", err)
	}
	return nil
}

func mapStoreError(msg string, err error) error {
	switch {
	case errors.Is(err, store.ErrDuplicateUsername):
		return apperror.NewConflictError("Username already registered", err)
	case errors.Is(err, store.ErrDuplicateEmail):
		return apperror.NewConflictError("Email already registered", err)
	case errors.Is(err, store.ErrNotFound):
		return apperror.NewNotFoundError("User not found", err)
	}
	return apperror.NewDatabaseError(msg, err)
}
