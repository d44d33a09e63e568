package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/store"
)

// OwnerGuard only lets the author of a resource through. The resource id comes
// from the chi URL parameter param; lookup loads it and authorOf returns its author.
// It must run after Authenticate.
func OwnerGuard[T any](
	param string,
	lookup func(ctx context.Context, id string) (T, error),
	authorOf func(T) string,
	forbiddenMsg string,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				apperror.WriteError(w, r, apperror.NewAuthError("There is no token in the request", nil))
				return
			}

			resource, err := lookup(r.Context(), chi.URLParam(r, param))
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					apperror.WriteError(w, r, apperror.NewNotFoundError("Resource not found", err))
					return
				}
				apperror.WriteError(w, r, apperror.NewDatabaseError("failed to load resource", err))
				return
			}

			if authorOf(resource) != userID {
				apperror.WriteError(w, r, apperror.NewUnauthorizedError(forbiddenMsg, nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
