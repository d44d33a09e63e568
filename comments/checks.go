package comments

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/user/opinion-manager/store"
	"github.com/user/opinion-manager/validation"
)

// RegisterChecks adds comment_exists, which fails with 404 "Comment not found".
func RegisterChecks(v *validation.Validator, comments store.CommentStore) {
	v.RegisterCheck("comment_exists", validation.NotFound, "Comment not found",
		func(ctx context.Context, fl validator.FieldLevel) (bool, error) {
			_, err := comments.GetComment(ctx, fl.Field().String())
			if errors.Is(err, store.ErrNotFound) {
				return false, nil
			}
			return err == nil, err
		})
}
