package posts

import (
	"time"

	"github.com/user/opinion-manager/comments"
	"github.com/user/opinion-manager/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListPostsRequest pages through the feed, newest first.
type ListPostsRequest struct {
	Limit *int `query:"limit" validate:"omitnil,min=1,max=100"`
	Skip  *int `query:"skip" validate:"omitnil,min=0"`
}

// PostIDRequest carries nothing but the {postId} path parameter.
type PostIDRequest struct {
	PostID string `json:"-" path:"postId" validate:"required,mongodb,post_exists"`
}

// CreatePostRequest
// @Description Request body for publishing a post
type CreatePostRequest struct {
	Title    string `json:"title" validate:"required" msg:"Obligatory field" example:"On analytical engines"`
	Category string `json:"category" example:"technology"`
	Text     string `json:"text" example:"The engine weaves algebraic patterns."`
}

// UpdatePostRequest changes only the fields that are sent; a sent field may not be empty.
// @Description Request body for editing a post
type UpdatePostRequest struct {
	PostID   string  `json:"-" path:"postId" validate:"required,mongodb,post_exists"`
	Title    *string `json:"title,omitempty" validate:"omitnil,min=1" example:"On difference engines"`
	Category *string `json:"category,omitempty" validate:"omitnil,min=1" example:"history"`
	Text     *string `json:"text,omitempty" validate:"omitnil,min=1" example:"Revised text."`
}

// PostResponse is the public view of a post.
// @Description A published post
type PostResponse struct {
	ID        string    `json:"id" example:"5f1d7f3e9d1b2c3a4e5f6a7b"`
	Title     string    `json:"title" example:"On analytical engines"`
	Category  string    `json:"category" example:"technology"`
	Text      string    `json:"text" example:"The engine weaves algebraic patterns."`
	Author    string    `json:"author" example:"5f1d7f3e9d1b2c3a4e5f6a7c"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type PostEnvelope struct {
	Msg  string       `json:"msg,omitempty" example:"Post created"`
	Post PostResponse `json:"post"`
}

// PostDetailResponse is a post together with its comments, oldest first.
type PostDetailResponse struct {
	Post     PostResponse               `json:"post"`
	Comments []comments.CommentResponse `json:"comments"`
}

type FeedResponse struct {
	Total int64          `json:"total" example:"42"`
	Posts []PostResponse `json:"posts"`
}

type MessageResponse struct {
	Msg string `json:"msg" example:"Post deleted"`
}

func toResponse(p *store.Post) PostResponse {
	return PostResponse{
		ID:        p.ID,
		Title:     p.Title,
		Category:  p.Category,
		Text:      p.Text,
		Author:    p.AuthorID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
