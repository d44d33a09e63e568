// Package storetest is a conformance suite every store.Store backend runs from its own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/opinion-manager/store"
)

// Factory returns an empty store; the suite calls it once per sub-test.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("UserUniqueness", func(t *testing.T) { testUserUniqueness(t, newStore(t)) })
	t.Run("UserLookup", func(t *testing.T) { testUserLookup(t, newStore(t)) })
	t.Run("UserUpdate", func(t *testing.T) { testUserUpdate(t, newStore(t)) })
	t.Run("PostRoundTrip", func(t *testing.T) { testPostRoundTrip(t, newStore(t)) })
	t.Run("PostList", func(t *testing.T) { testPostList(t, newStore(t)) })
	t.Run("CommentLifecycle", func(t *testing.T) { testCommentLifecycle(t, newStore(t)) })
	t.Run("DeletePostCascades", func(t *testing.T) { testDeletePostCascades(t, newStore(t)) })
	t.Run("UnknownIDs", func(t *testing.T) { testUnknownIDs(t, newStore(t)) })
}

func newUser(username, email string) *store.User {
	return &store.User{
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$10$hash",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Active:       true,
	}
}

func testUserUniqueness(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, newUser("ada", "ada@example.com")))

	err := s.CreateUser(ctx, newUser("ada", "other@example.com"))
	assert.ErrorIs(t, err, store.ErrDuplicateUsername)

	err = s.CreateUser(ctx, newUser("grace", "ADA@example.com"))
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)
}

func testUserLookup(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := newUser("ada", "Ada@Example.com")
	require.NoError(t, s.CreateUser(ctx, u))
	require.True(t, store.ValidID(u.ID))

	byName, err := s.FindUserByIdentifier(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byMail, err := s.FindUserByIdentifier(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byMail.ID)
	assert.Equal(t, "ada@example.com", byMail.Email)

	taken, err := s.UsernameTaken(ctx, "ada", "")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = s.UsernameTaken(ctx, "ada", u.ID)
	require.NoError(t, err)
	assert.False(t, taken, "own username must not count as taken")

	taken, err = s.EmailTaken(ctx, "ada@example.com", "")
	require.NoError(t, err)
	assert.True(t, taken)

	_, err = s.FindUserByIdentifier(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUserUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	ada := newUser("ada", "ada@example.com")
	grace := newUser("grace", "grace@example.com")
	require.NoError(t, s.CreateUser(ctx, ada))
	require.NoError(t, s.CreateUser(ctx, grace))

	name, first, inactive := "countess", "Augusta", false
	got, err := s.UpdateUser(ctx, ada.ID, store.UserUpdate{Username: &name, FirstName: &first, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "countess", got.Username)
	assert.Equal(t, "Augusta", got.FirstName)
	assert.Equal(t, "Lovelace", got.LastName)
	assert.False(t, got.Active)

	clash := "grace"
	_, err = s.UpdateUser(ctx, ada.ID, store.UserUpdate{Username: &clash})
	assert.ErrorIs(t, err, store.ErrDuplicateUsername)
}

func testPostRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	author := newUser("ada", "ada@example.com")
	require.NoError(t, s.CreateUser(ctx, author))

	p := &store.Post{Title: "Engines", Category: "math", Text: "Analytical", AuthorID: author.ID}
	require.NoError(t, s.CreatePost(ctx, p))
	require.True(t, store.ValidID(p.ID))

	got, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)
	assert.Equal(t, p.Category, got.Category)
	assert.Equal(t, p.Text, got.Text)
	assert.Equal(t, author.ID, got.AuthorID)
	assert.False(t, got.CreatedAt.IsZero())

	title := "Difference engines"
	upd, err := s.UpdatePost(ctx, p.ID, store.PostUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, upd.Title)
	assert.Equal(t, "Analytical", upd.Text)
	assert.False(t, upd.UpdatedAt.Before(upd.CreatedAt))
}

func testPostList(t *testing.T, s store.Store) {
	ctx := context.Background()
	author := newUser("ada", "ada@example.com")
	require.NoError(t, s.CreateUser(ctx, author))

	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		p := &store.Post{Title: title, AuthorID: author.ID}
		require.NoError(t, s.CreatePost(ctx, p))
		ids = append(ids, p.ID)
	}

	page, total, err := s.ListPosts(ctx, store.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID, "newest first")

	rest, _, err := s.ListPosts(ctx, store.ListOptions{Limit: 2, Skip: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[0], rest[0].ID)
}

func testCommentLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	author := newUser("ada", "ada@example.com")
	require.NoError(t, s.CreateUser(ctx, author))
	p := &store.Post{Title: "t", AuthorID: author.ID}
	require.NoError(t, s.CreatePost(ctx, p))

	c := &store.Comment{Text: "first", AuthorID: author.ID, PostID: p.ID}
	require.NoError(t, s.CreateComment(ctx, c))
	c2 := &store.Comment{Text: "second", AuthorID: author.ID, PostID: p.ID}
	require.NoError(t, s.CreateComment(ctx, c2))

	list, err := s.ListCommentsByPost(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, c.ID, list[0].ID)

	upd, err := s.UpdateComment(ctx, c.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", upd.Text)
	assert.Equal(t, p.ID, upd.PostID)

	require.NoError(t, s.DeleteComment(ctx, c.ID))
	_, err = s.GetComment(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDeletePostCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	author := newUser("ada", "ada@example.com")
	require.NoError(t, s.CreateUser(ctx, author))
	p := &store.Post{Title: "t", AuthorID: author.ID}
	require.NoError(t, s.CreatePost(ctx, p))
	c := &store.Comment{Text: "x", AuthorID: author.ID, PostID: p.ID}
	require.NoError(t, s.CreateComment(ctx, c))

	require.NoError(t, s.DeletePost(ctx, p.ID))
	_, err := s.GetPost(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetComment(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUnknownIDs(t *testing.T, s store.Store) {
	ctx := context.Background()
	missing := store.NewID()

	_, err := s.GetUser(ctx, missing)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetPost(ctx, missing)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetComment(ctx, missing)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeletePost(ctx, missing), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteComment(ctx, missing), store.ErrNotFound)

	text := "x"
	_, err = s.UpdatePost(ctx, missing, store.PostUpdate{Text: &text})
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UpdateComment(ctx, missing, text)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.CreateComment(ctx, &store.Comment{Text: "orphan", AuthorID: missing, PostID: missing})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
