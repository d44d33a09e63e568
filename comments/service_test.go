package comments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/store"
	"github.com/user/opinion-manager/store/memstore"
)

func TestCommentLifecycle(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	author := store.NewID()
	post := &store.Post{Title: "t", AuthorID: author}
	require.NoError(t, st.CreatePost(ctx, post))
	svc := NewService(st)

	c, err := svc.Create(ctx, author, post.ID, "first")
	require.NoError(t, err)
	assert.Equal(t, post.ID, c.PostID)
	assert.Equal(t, author, c.AuthorID)

	list, err := svc.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	upd, err := svc.Update(ctx, c.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", upd.Text)

	require.NoError(t, svc.Delete(ctx, c.ID))
	assert.True(t, apperror.IsNotFound(svc.Delete(ctx, c.ID)))
}

func TestCreateOnMissingPostStoresNothing(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	svc := NewService(st)
	missing := store.NewID()

	_, err := svc.Create(ctx, store.NewID(), missing, "orphan")
	appErr, ok := apperror.FromError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.NotFoundError, appErr.Type)
	assert.Equal(t, "Post not found", appErr.Message)

	list, err := svc.ListByPost(ctx, missing)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestToResponsesEmptyIsNotNil(t *testing.T) {
	assert.NotNil(t, ToResponses(nil))
}
