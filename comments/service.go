// Package comments lets authenticated users comment on existing posts. A comment
// can only be edited or deleted by its author.
package comments

import (
	"context"
	"errors"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/store"
)

type Service struct {
	store store.CommentStore
}

func NewService(s store.CommentStore) *Service {
	return &Service{store: s}
}

// Create stores a comment on postID. The post is checked again by the store at
// insert time, so a post deleted after validation still yields 404 and no comment.
func (s *Service) Create(ctx context.Context, authorID, postID, text string) (*store.Comment, error) {
	c := &store.Comment{Text: text, AuthorID: authorID, PostID: postID}
	if err := s.store.CreateComment(ctx, c); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NewNotFoundError("Post not found", err)
		}
		return nil, apperror.NewDatabaseError("failed to create comment", err)
	}
	return c, nil
}

func (s *Service) ListByPost(ctx context.Context, postID string) ([]store.Comment, error) {
	list, err := s.store.ListCommentsByPost(ctx, postID)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list comments", err)
	}
	return list, nil
}

func (s *Service) Update(ctx context.Context, id, text string) (*store.Comment, error) {
	c, err := s.store.UpdateComment(ctx, id, text)
	if err != nil {
		return nil, mapStoreError("failed to update comment", err)
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteComment(ctx, id); err != nil {
		return mapStoreError("failed to delete comment", err)
	}
	return nil
}

func mapStoreError(msg string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NewNotFoundError("Comment not found", err)
	}
	return apperror.NewDatabaseError(msg, err)
}
