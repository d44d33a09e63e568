// Package auth covers who is calling: issuing and verifying tokens, turning a
// bearer token into a request identity, login, and the resource ownership guard.
package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/store"
)

// InvalidCredentialsMessage is returned for every failed login, whatever the reason.
const InvalidCredentialsMessage = "Incorrect credentials: username, email or password is invalid"

// CredentialStore finds the account a login identifier refers to.
type CredentialStore interface {
	FindUserByIdentifier(ctx context.Context, identifier string) (*store.User, error)
}

type Service struct {
	users  CredentialStore
	tokens *TokenService
	// dummyHash is compared against when the identifier is unknown, so that a miss
	// costs about as much as a wrong password.
	dummyHash []byte
}

func NewService(users CredentialStore, tokens *TokenService) *Service {
	hash, _ := bcrypt.GenerateFromPassword([]byte("opinion-manager-dummy-password"), bcrypt.DefaultCost)
	return &Service{users: users, tokens: tokens, dummyHash: hash}
}

// Login checks the credentials and issues a token. Unknown identifier, deactivated
// account and wrong password all produce the same AuthError.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.users.FindUserByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
			return nil, apperror.NewAuthError(InvalidCredentialsMessage, nil)
		}
		return nil, apperror.NewDatabaseError("failed to look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperror.NewAuthError(InvalidCredentialsMessage, nil)
	}
	if !user.Active {
		return nil, apperror.NewAuthError(InvalidCredentialsMessage, nil)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperror.NewInternalError("failed to issue token", err)
	}

	return &LoginResponse{
		Msg:   "Login Ok",
		User:  LoginUser{Username: user.Username, Email: user.Email},
		Token: token,
	}, nil
}
