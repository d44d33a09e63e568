// Package mongostore implements store.Store on MongoDB, the document database the
// application is designed around. Users, posts and comments are one collection each;
// author and post references are stored as ObjectIDs.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/user/opinion-manager/store"
)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	commentsCollection = "comments"

	usernameIndex = "username_unique"
	emailIndex    = "email_unique"
)

type Options struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
}

type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	users    *mongo.Collection
	posts    *mongo.Collection
	comments *mongo.Collection
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Username  string             `bson:"username"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	FirstName string             `bson:"firstname"`
	LastName  string             `bson:"lastname"`
	Status    bool               `bson:"status"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type postDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Title     string             `bson:"title"`
	Category  string             `bson:"category"`
	Text      string             `bson:"text"`
	Author    primitive.ObjectID `bson:"author"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type commentDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Text      string             `bson:"text"`
	Author    primitive.ObjectID `bson:"author"`
	Post      primitive.ObjectID `bson:"post"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

// Open connects, pings and makes sure the unique and lookup indexes exist.
// A failure here is a startup failure.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(opts.Database)
	s := &Store{
		client:   client,
		db:       db,
		users:    db.Collection(usersCollection),
		posts:    db.Collection(postsCollection),
		comments: db.Collection(commentsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName(usernameIndex)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(emailIndex)},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	_, err = s.posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create post indexes: %w", err)
	}
	_, err = s.comments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "post", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create comment indexes: %w", err)
	}
	return nil
}

// Database exposes the underlying database so other components (rate-limit
// counters) can share the connection.
func (s *Store) Database() *mongo.Database { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user *store.User) error {
	id := primitive.NewObjectID()
	now := store.Now()
	doc := userDoc{
		ID:        id,
		Username:  user.Username,
		Email:     strings.ToLower(user.Email),
		Password:  user.PasswordHash,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Status:    user.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return duplicateUserError(err)
	}
	*user = doc.toModel()
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	u := doc.toModel()
	return &u, nil
}

func (s *Store) FindUserByIdentifier(ctx context.Context, identifier string) (*store.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"email": strings.ToLower(identifier)},
		bson.M{"username": identifier},
	}}
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	u := doc.toModel()
	return &u, nil
}

func (s *Store) UsernameTaken(ctx context.Context, username, exceptID string) (bool, error) {
	return s.taken(ctx, bson.M{"username": username}, exceptID)
}

func (s *Store) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	return s.taken(ctx, bson.M{"email": strings.ToLower(email)}, exceptID)
}

func (s *Store) taken(ctx context.Context, filter bson.M, exceptID string) (bool, error) {
	if oid, err := primitive.ObjectIDFromHex(exceptID); err == nil {
		filter["_id"] = bson.M{"$ne": oid}
	}
	n, err := s.users.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd store.UserUpdate) (*store.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	set := bson.M{"updatedAt": store.Now()}
	if upd.Username != nil {
		set["username"] = *upd.Username
	}
	if upd.PasswordHash != nil {
		set["password"] = *upd.PasswordHash
	}
	if upd.FirstName != nil {
		set["firstname"] = *upd.FirstName
	}
	if upd.LastName != nil {
		set["lastname"] = *upd.LastName
	}
	if upd.Active != nil {
		set["status"] = *upd.Active
	}

	var doc userDoc
	err = s.users.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, duplicateUserError(err)
		}
		return nil, notFound(err)
	}
	u := doc.toModel()
	return &u, nil
}

// --- posts ---

func (s *Store) CreatePost(ctx context.Context, post *store.Post) error {
	author, err := primitive.ObjectIDFromHex(post.AuthorID)
	if err != nil {
		return fmt.Errorf("invalid author id %q: %w", post.AuthorID, err)
	}
	now := store.Now()
	doc := postDoc{
		ID:        primitive.NewObjectID(),
		Title:     post.Title,
		Category:  post.Category,
		Text:      post.Text,
		Author:    author,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.posts.InsertOne(ctx, doc); err != nil {
		return err
	}
	*post = doc.toModel()
	return nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*store.Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	var doc postDoc
	if err := s.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	p := doc.toModel()
	return &p, nil
}

func (s *Store) ListPosts(ctx context.Context, opts store.ListOptions) ([]store.Post, int64, error) {
	total, err := s.posts.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(opts.Skip))
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	cur, err := s.posts.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, 0, err
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]store.Post, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, total, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, upd store.PostUpdate) (*store.Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	set := bson.M{"updatedAt": store.Now()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Category != nil {
		set["category"] = *upd.Category
	}
	if upd.Text != nil {
		set["text"] = *upd.Text
	}
	var doc postDoc
	err = s.posts.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	p := doc.toModel()
	return &p, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrNotFound
	}
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	// Comments are separate documents; remove them after the post is gone.
	if _, err := s.comments.DeleteMany(ctx, bson.M{"post": oid}); err != nil {
		return fmt.Errorf("delete comments of post %s: %w", id, err)
	}
	return nil
}

// --- comments ---

func (s *Store) CreateComment(ctx context.Context, comment *store.Comment) error {
	post, err := primitive.ObjectIDFromHex(comment.PostID)
	if err != nil {
		return store.ErrNotFound
	}
	author, err := primitive.ObjectIDFromHex(comment.AuthorID)
	if err != nil {
		return fmt.Errorf("invalid author id %q: %w", comment.AuthorID, err)
	}
	n, err := s.posts.CountDocuments(ctx, bson.M{"_id": post}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	now := store.Now()
	doc := commentDoc{
		ID:        primitive.NewObjectID(),
		Text:      comment.Text,
		Author:    author,
		Post:      post,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.comments.InsertOne(ctx, doc); err != nil {
		return err
	}
	*comment = doc.toModel()
	return nil
}

func (s *Store) GetComment(ctx context.Context, id string) (*store.Comment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	var doc commentDoc
	if err := s.comments.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	c := doc.toModel()
	return &c, nil
}

func (s *Store) ListCommentsByPost(ctx context.Context, postID string) ([]store.Comment, error) {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return []store.Comment{}, nil
	}
	cur, err := s.comments.Find(ctx, bson.M{"post": oid},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]store.Comment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (s *Store) UpdateComment(ctx context.Context, id string, text string) (*store.Comment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	var doc commentDoc
	err = s.comments.FindOneAndUpdate(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"text": text, "updatedAt": store.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	c := doc.toModel()
	return &c, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrNotFound
	}
	res, err := s.comments.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- helpers ---

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

// duplicateUserError maps an E11000 on one of the user indexes to the matching sentinel.
func duplicateUserError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, usernameIndex):
		return store.ErrDuplicateUsername
	case strings.Contains(msg, emailIndex):
		return store.ErrDuplicateEmail
	}
	return err
}

func (d userDoc) toModel() store.User {
	return store.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.Password,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Active:       d.Status,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func (d postDoc) toModel() store.Post {
	return store.Post{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Category:  d.Category,
		Text:      d.Text,
		AuthorID:  d.Author.Hex(),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func (d commentDoc) toModel() store.Comment {
	return store.Comment{
		ID:        d.ID.Hex(),
		Text:      d.Text,
		AuthorID:  d.Author.Hex(),
		PostID:    d.Post.Hex(),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

var _ store.Store = (*Store)(nil)
