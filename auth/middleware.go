package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/store"
)

// UserLookup is the part of the user store the middleware needs.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
}

// Authenticate verifies the bearer token, loads the user and attaches it to the
// request context. A missing header, a bad token, an unknown user or a deactivated
// account all end the request with 401.
func Authenticate(tokens *TokenService, users UserLookup) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apperror.WriteError(w, r, apperror.NewAuthError("There is no token in the request", nil))
				return
			}

			// "Bearer {token}"; the scheme is case-insensitive.
			scheme, token, found := strings.Cut(authHeader, " ")
			token = strings.TrimSpace(token)
			if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
				apperror.WriteError(w, r, apperror.NewAuthError("Authorization header format must be Bearer {token}", nil))
				return
			}

			userID, err := tokens.Verify(token)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("token rejected")
				apperror.WriteError(w, r, apperror.NewAuthError("Invalid token", err))
				return
			}

			user, err := users.GetUser(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					apperror.WriteError(w, r, apperror.NewAuthError("Invalid token - user does not exist", nil))
					return
				}
				apperror.WriteError(w, r, apperror.NewDatabaseError("failed to load user", err))
				return
			}
			if !user.Active {
				apperror.WriteError(w, r, apperror.NewAuthError("Invalid token - user is deactivated", nil))
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContextWithUser(r.Context(), user)))
		})
	}
}
