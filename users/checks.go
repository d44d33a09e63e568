package users

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/user/opinion-manager/auth"
	"github.com/user/opinion-manager/store"
	"github.com/user/opinion-manager/validation"
)

// RegisterChecks adds username_available and email_available to v. When the
// request is authenticated the caller's own record does not count as taken, so
// a profile update may keep the current username.
func RegisterChecks(v *validation.Validator, users store.UserStore) {
	v.RegisterCheck("username_available", validation.Conflict, "Username already registered",
		func(ctx context.Context, fl validator.FieldLevel) (bool, error) {
			self, _ := auth.UserIDFromContext(ctx)
			taken, err := users.UsernameTaken(ctx, fl.Field().String(), self)
			return !taken, err
		})
	v.RegisterCheck("email_available", validation.Conflict, "Email already registered",
		func(ctx context.Context, fl validator.FieldLevel) (bool, error) {
			self, _ := auth.UserIDFromContext(ctx)
			taken, err := users.EmailTaken(ctx, fl.Field().String(), self)
			return !taken, err
		})
}
