package posts

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/user/opinion-manager/store"
	"github.com/user/opinion-manager/validation"
)

// RegisterChecks adds post_exists, which fails with 404 "Post not found".
func RegisterChecks(v *validation.Validator, posts store.PostStore) {
	v.RegisterCheck("post_exists", validation.NotFound, "Post not found",
		func(ctx context.Context, fl validator.FieldLevel) (bool, error) {
			_, err := posts.GetPost(ctx, fl.Field().String())
			if errors.Is(err, store.ErrNotFound) {
				return false, nil
			}
			return err == nil, err
		})
}
