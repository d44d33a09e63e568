package comments

import (
	"time"

	"github.com/user/opinion-manager/store"
)

// CreateCommentRequest
// @Description Request body for commenting on a post
type CreateCommentRequest struct {
	PostID string `json:"-" path:"postId" validate:"required,mongodb,post_exists"`
	Text   string `json:"text" validate:"required" msg:"Obligatory field" example:"Fascinating read."`
}

// PostCommentsRequest carries the {postId} of a comment listing.
type PostCommentsRequest struct {
	PostID string `json:"-" path:"postId" validate:"required,mongodb,post_exists"`
}

type CommentIDRequest struct {
	CommentID string `json:"-" path:"commentId" validate:"required,mongodb,comment_exists"`
}

// UpdateCommentRequest
// @Description Request body for editing a comment
type UpdateCommentRequest struct {
	CommentID string `json:"-" path:"commentId" validate:"required,mongodb,comment_exists"`
	Text      string `json:"text" validate:"required" msg:"Obligatory field" example:"Edited: fascinating read."`
}

// CommentResponse is the public view of a comment.
// @Description A comment on a post
type CommentResponse struct {
	ID        string    `json:"id" example:"5f1d7f3e9d1b2c3a4e5f6a7d"`
	Text      string    `json:"text" example:"Fascinating read."`
	Author    string    `json:"author" example:"5f1d7f3e9d1b2c3a4e5f6a7c"`
	Post      string    `json:"post" example:"5f1d7f3e9d1b2c3a4e5f6a7b"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CommentEnvelope struct {
	Msg     string          `json:"msg,omitempty" example:"Comment created"`
	Comment CommentResponse `json:"comment"`
}

type CommentListResponse struct {
	Comments []CommentResponse `json:"comments"`
}

type MessageResponse struct {
	Msg string `json:"msg" example:"Comment deleted"`
}

func ToResponse(c *store.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		Text:      c.Text,
		Author:    c.AuthorID,
		Post:      c.PostID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ToResponses never returns nil, so an empty list encodes as [].
func ToResponses(list []store.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(list))
	for i := range list {
		out = append(out, ToResponse(&list[i]))
	}
	return out
}
