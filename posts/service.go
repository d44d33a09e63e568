// Package posts publishes, lists, edits and deletes posts. Editing and deleting
// are reserved to the author; deleting a post also removes its comments.
package posts

import (
	"context"
	"errors"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/store"
)

// Store is what the service needs: posts, plus comments for the detail view.
type Store interface {
	store.PostStore
	ListCommentsByPost(ctx context.Context, postID string) ([]store.Comment, error)
}

type Service struct {
	store Store
}

func NewService(s Store) *Service {
	return &Service{store: s}
}

func (s *Service) Create(ctx context.Context, authorID string, req CreatePostRequest) (*store.Post, error) {
	post := &store.Post{
		Title:    req.Title,
		Category: req.Category,
		Text:     req.Text,
		AuthorID: authorID,
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, apperror.NewDatabaseError("failed to create post", err)
	}
	return post, nil
}

// Get returns the post and its comments.
func (s *Service) Get(ctx context.Context, id string) (*store.Post, []store.Comment, error) {
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, nil, mapStoreError("failed to load post", err)
	}
	list, err := s.store.ListCommentsByPost(ctx, id)
	if err != nil {
		return nil, nil, apperror.NewDatabaseError("failed to load comments", err)
	}
	return post, list, nil
}

// List clamps limit to 1..100 (20 when unset) and skip to >= 0.
func (s *Service) List(ctx context.Context, limit, skip *int) ([]store.Post, int64, error) {
	opts := store.ListOptions{Limit: defaultPageSize}
	if limit != nil {
		opts.Limit = min(max(*limit, 1), maxPageSize)
	}
	if skip != nil {
		opts.Skip = max(*skip, 0)
	}
	list, total, err := s.store.ListPosts(ctx, opts)
	if err != nil {
		return nil, 0, apperror.NewDatabaseError("failed to list posts", err)
	}
	return list, total, nil
}

func (s *Service) Update(ctx context.Context, req UpdatePostRequest) (*store.Post, error) {
	post, err := s.store.UpdatePost(ctx, req.PostID, store.PostUpdate{
		Title:    req.Title,
		Category: req.Category,
		Text:     req.Text,
	})
	if err != nil {
		return nil, mapStoreError("failed to update post", err)
	}
	return post, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeletePost(ctx, id); err != nil {
		return mapStoreError("failed to delete post", err)
	}
	return nil
}

func mapStoreError(msg string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NewNotFoundError("Post not found", err)
	}
	return apperror.NewDatabaseError(msg, err)
}
