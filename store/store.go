// Package store defines the document model (users, posts, comments) and the
// persistence contracts the services depend on. Concrete backends live in
// sub-packages: mongostore (primary), pgstore and memstore.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateEmail    = errors.New("duplicate email")
)

// User is a registered account. PasswordHash is a bcrypt hash and never leaves the service layer.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Post is authored by exactly one user.
type Post struct {
	ID        string
	Title     string
	Category  string
	Text      string
	AuthorID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Comment belongs to one post and one author.
type Comment struct {
	ID        string
	Text      string
	AuthorID  string
	PostID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserUpdate carries the fields to change; nil means "leave as is".
type UserUpdate struct {
	Username     *string
	PasswordHash *string
	FirstName    *string
	LastName     *string
	Active       *bool
}

// PostUpdate carries the fields to change; nil means "leave as is".
type PostUpdate struct {
	Title    *string
	Category *string
	Text     *string
}

type ListOptions struct {
	Limit int
	Skip  int
}

type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	// FindUserByIdentifier matches either the username or the (lower-cased) email.
	FindUserByIdentifier(ctx context.Context, identifier string) (*User, error)
	// UsernameTaken reports whether another user (id != exceptID) holds the username.
	UsernameTaken(ctx context.Context, username, exceptID string) (bool, error)
	EmailTaken(ctx context.Context, email, exceptID string) (bool, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (*User, error)
}

type PostStore interface {
	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id string) (*Post, error)
	// ListPosts returns a page of posts, newest first, and the total count.
	ListPosts(ctx context.Context, opts ListOptions) ([]Post, int64, error)
	UpdatePost(ctx context.Context, id string, upd PostUpdate) (*Post, error)
	// DeletePost removes the post together with its comments.
	DeletePost(ctx context.Context, id string) error
}

type CommentStore interface {
	CreateComment(ctx context.Context, comment *Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	// ListCommentsByPost returns comments oldest first.
	ListCommentsByPost(ctx context.Context, postID string) ([]Comment, error)
	UpdateComment(ctx context.Context, id string, text string) (*Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

type Store interface {
	UserStore
	PostStore
	CommentStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// NewID returns a fresh 24-hex identifier. Every backend uses the ObjectID format so
// the same id validation rule applies regardless of where documents are stored.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id has the ObjectID hex shape.
func ValidID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// NormalizeID returns the canonical lower-case form of a valid id; other input is
// returned unchanged. Backends compare ids as strings.
func NormalizeID(id string) string {
	if !ValidID(id) {
		return id
	}
	return strings.ToLower(id)
}

// Now is the timestamp source for all backends; truncated to milliseconds so values
// survive a round trip through Mongo and Postgres unchanged.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
