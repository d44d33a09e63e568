// Package memstore is an in-process implementation of store.Store.
// It backs the `memory://` database URL and the hermetic tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/user/opinion-manager/store"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]store.User
	posts    map[string]store.Post
	comments map[string]store.Comment
}

func New() *Store {
	return &Store{
		users:    make(map[string]store.User),
		posts:    make(map[string]store.Post),
		comments: make(map[string]store.Comment),
	}
}

func (s *Store) Ping(ctx context.Context) error  { return ctx.Err() }
func (s *Store) Close(ctx context.Context) error { return nil }

func (s *Store) CreateUser(ctx context.Context, user *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	for _, u := range s.users {
		if u.Username == user.Username {
			return store.ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return store.ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = store.NewID()
	}
	now := store.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) FindUserByIdentifier(ctx context.Context, identifier string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lower := strings.ToLower(identifier)
	for _, u := range s.users {
		if u.Username == identifier || u.Email == lower {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UsernameTaken(ctx context.Context, username, exceptID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, u := range s.users {
		if id != exceptID && u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lower := strings.ToLower(email)
	for id, u := range s.users {
		if id != exceptID && u.Email == lower {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd store.UserUpdate) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if upd.Username != nil && *upd.Username != u.Username {
		for otherID, other := range s.users {
			if otherID != id && other.Username == *upd.Username {
				return nil, store.ErrDuplicateUsername
			}
		}
		u.Username = *upd.Username
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.Active != nil {
		u.Active = *upd.Active
	}
	u.UpdatedAt = store.Now()
	s.users[id] = u
	return &u, nil
}

func (s *Store) CreatePost(ctx context.Context, post *store.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if post.ID == "" {
		post.ID = store.NewID()
	}
	now := store.Now()
	post.CreatedAt, post.UpdatedAt = now, now
	s.posts[post.ID] = *post
	return nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*store.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListPosts(ctx context.Context, opts store.ListOptions) ([]store.Post, int64, error) {
	s.mu.RLock()
	all := make([]store.Post, 0, len(s.posts))
	for _, p := range s.posts {
		all = append(all, p)
	}
	s.mu.RUnlock()

	// Newest first; ids break ties because ObjectIDs grow monotonically.
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if opts.Skip >= len(all) {
		return []store.Post{}, total, nil
	}
	all = all[opts.Skip:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, total, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, upd store.PostUpdate) (*store.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	if upd.Text != nil {
		p.Text = *upd.Text
	}
	p.UpdatedAt = store.Now()
	s.posts[id] = p
	return &p, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.posts, id)
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	return nil
}

func (s *Store) CreateComment(ctx context.Context, comment *store.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[comment.PostID]; !ok {
		return store.ErrNotFound
	}
	if comment.ID == "" {
		comment.ID = store.NewID()
	}
	now := store.Now()
	comment.CreatedAt, comment.UpdatedAt = now, now
	s.comments[comment.ID] = *comment
	return nil
}

func (s *Store) GetComment(ctx context.Context, id string) (*store.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCommentsByPost(ctx context.Context, postID string) ([]store.Comment, error) {
	s.mu.RLock()
	out := make([]store.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateComment(ctx context.Context, id string, text string) (*store.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.Text = text
	c.UpdatedAt = store.Now()
	s.comments[id] = c
	return &c, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

var _ store.Store = (*Store)(nil)
