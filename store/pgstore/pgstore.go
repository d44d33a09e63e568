// Package pgstore implements store.Store on PostgreSQL using a pgx connection pool.
// Identifiers keep the 24-hex ObjectID shape so clients cannot tell the backends apart.
// The schema is embedded and applied with golang-migrate on Open.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers the postgres:// migrate driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // database/sql driver used by migrate's postgres driver

	"github.com/user/opinion-manager/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

type Options struct {
	URL            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

type Store struct {
	pool *pgxpool.Pool
}

// Open runs pending migrations, then creates and pings the pool.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if err := RunMigrations(opts.URL); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.MaxConnLifetime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// RunMigrations applies the embedded migrations. migrate.ErrNoChange is not an error.
func RunMigrations(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Pool exposes the pool for tests that need to reset tables.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

// --- users ---

const userColumns = `id, username, email, password_hash, first_name, last_name, active, created_at, updated_at`

func scanUser(row pgx.Row) (*store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	u.CreatedAt, u.UpdatedAt = u.CreatedAt.UTC(), u.UpdatedAt.UTC()
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user *store.User) error {
	if user.ID == "" {
		user.ID = store.NewID()
	}
	user.Email = strings.ToLower(user.Email)
	now := store.Now()
	user.CreatedAt, user.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.Active, user.CreatedAt, user.UpdatedAt)
	return mapError(err)
}

func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	if !store.ValidID(id) {
		return nil, store.ErrNotFound
	}
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) FindUserByIdentifier(ctx context.Context, identifier string) (*store.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $2 LIMIT 1`,
		identifier, strings.ToLower(identifier)))
}

func (s *Store) UsernameTaken(ctx context.Context, username, exceptID string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`, username, exceptID)
}

func (s *Store) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`, strings.ToLower(email), exceptID)
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd store.UserUpdate) (*store.User, error) {
	if !store.ValidID(id) {
		return nil, store.ErrNotFound
	}
	// COALESCE keeps the current value for every nil field.
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET
			username      = COALESCE($2, username),
			password_hash = COALESCE($3, password_hash),
			first_name    = COALESCE($4, first_name),
			last_name     = COALESCE($5, last_name),
			active        = COALESCE($6, active),
			updated_at    = $7
		WHERE id = $1
		RETURNING `+userColumns,
		id, upd.Username, upd.PasswordHash, upd.FirstName, upd.LastName, upd.Active, store.Now())
	u, err := scanUser(row)
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// --- posts ---

const postColumns = `id, title, category, body, author_id, created_at, updated_at`

func scanPost(row pgx.Row) (*store.Post, error) {
	var p store.Post
	if err := row.Scan(&p.ID, &p.Title, &p.Category, &p.Text, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) CreatePost(ctx context.Context, post *store.Post) error {
	if post.ID == "" {
		post.ID = store.NewID()
	}
	now := store.Now()
	post.CreatedAt, post.UpdatedAt = now, now
	_, err := s.pool.Exec(ctx,
		`INSERT INTO posts (`+postColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		post.ID, post.Title, post.Category, post.Text, post.AuthorID, post.CreatedAt, post.UpdatedAt)
	return mapError(err)
}

func (s *Store) GetPost(ctx context.Context, id string) (*store.Post, error) {
	if !store.ValidID(id) {
		return nil, store.ErrNotFound
	}
	return scanPost(s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
}

func (s *Store) ListPosts(ctx context.Context, opts store.ListOptions) ([]store.Post, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	// LIMIT NULL means no limit.
	var limit *int
	if opts.Limit > 0 {
		limit = &opts.Limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, opts.Skip)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]store.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdatePost(ctx context.Context, id string, upd store.PostUpdate) (*store.Post, error) {
	if !store.ValidID(id) {
		return nil, store.ErrNotFound
	}
	return scanPost(s.pool.QueryRow(ctx, `
		UPDATE posts SET
			title      = COALESCE($2, title),
			category   = COALESCE($3, category),
			body       = COALESCE($4, body),
			updated_at = $5
		WHERE id = $1
		RETURNING `+postColumns,
		id, upd.Title, upd.Category, upd.Text, store.Now()))
}

// DeletePost relies on ON DELETE CASCADE to remove the post's comments.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	if !store.ValidID(id) {
		return store.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- comments ---

const commentColumns = `id, body, author_id, post_id, created_at, updated_at`

func scanComment(row pgx.Row) (*store.Comment, error) {
	var c store.Comment
	if err := row.Scan(&c.ID, &c.Text, &c.AuthorID, &c.PostID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	c.CreatedAt, c.UpdatedAt = c.CreatedAt.UTC(), c.UpdatedAt.UTC()
	return &c, nil
}

// CreateComment returns store.ErrNotFound when the post (or author) does not exist;
// the foreign keys make that check atomic with the insert.
func (s *Store) CreateComment(ctx context.Context, comment *store.Comment) error {
	if !store.ValidID(comment.PostID) {
		return store.ErrNotFound
	}
	if comment.ID == "" {
		comment.ID = store.NewID()
	}
	now := store.Now()
	comment.CreatedAt, comment.UpdatedAt = now, now
	_, err := s.pool.Exec(ctx,
		`INSERT INTO comments (`+commentColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		comment.ID, comment.Text, comment.AuthorID, comment.PostID, comment.CreatedAt, comment.UpdatedAt)
	return mapError(err)
}

func (s *Store) GetComment(ctx context.Context, id string) (*store.Comment, error) {
	if !store.ValidID(id) {
		return nil, store.ErrNotFound
	}
	return scanComment(s.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
}

func (s *Store) ListCommentsByPost(ctx context.Context, postID string) ([]store.Comment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE post_id = $1 ORDER BY created_at, id`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]store.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateComment(ctx context.Context, id string, text string) (*store.Comment, error) {
	if !store.ValidID(id) {
		return nil, store.ErrNotFound
	}
	return scanComment(s.pool.QueryRow(ctx,
		`UPDATE comments SET body = $2, updated_at = $3 WHERE id = $1 RETURNING `+commentColumns,
		id, text, store.Now()))
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	if !store.ValidID(id) {
		return store.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- helpers ---

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapError turns constraint violations into store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case usernameConstraint:
			return store.ErrDuplicateUsername
		case emailConstraint:
			return store.ErrDuplicateEmail
		}
	case pgForeignKeyViolation:
		return store.ErrNotFound
	}
	return err
}

var _ store.Store = (*Store)(nil)
