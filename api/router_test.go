package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/opinion-manager/api"
	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/auth"
	"github.com/user/opinion-manager/config"
	"github.com/user/opinion-manager/ratelimit"
	"github.com/user/opinion-manager/store"
	"github.com/user/opinion-manager/store/memstore"
)

const testPassword = "Secret123"

type testServer struct {
	t       *testing.T
	handler http.Handler
	store   *memstore.Store
	cfg     *config.AppConfig
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Server:    config.ServerConfig{Port: "0"},
		Database:  config.DatabaseConfig{Driver: config.DriverMemory},
		Auth:      config.AuthConfig{JWTSecret: "test-secret-0123456789", TokenTTL: time.Hour, Issuer: "opinion-manager", BcryptCost: bcrypt.MinCost},
		RateLimit: config.RateLimitConfig{Max: 1000, Window: time.Minute, Store: config.RateLimitStoreMemory},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}},
		Log:       config.LogConfig{Level: "disabled", Format: "json"},
	}
}

func newTestServer(t *testing.T, mutate ...func(*config.AppConfig)) *testServer {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	st := memstore.New()
	h := api.NewRouter(api.Deps{
		Store:    st,
		Tokens:   auth.NewTokenService(cfg.Auth),
		Counters: ratelimit.NewMemoryStore(),
		Logger:   zerolog.Nop(),
		Config:   cfg,
	})
	return &testServer{t: t, handler: h, store: st, cfg: cfg}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, api.BasePath+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func registerBody(username string) map[string]string {
	return map[string]string{
		"username":  username,
		"email":     username + "@example.com",
		"password":  testPassword,
		"firstname": "Ada",
		"lastname":  "Lovelace",
	}
}

// signup registers username and returns a bearer token for it.
func (s *testServer) signup(username string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/user", "", registerBody(username))
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"identifier": username, "password": testPassword})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[struct {
		Token string `json:"token"`
	}](s.t, rec).Token
}

type idEnvelope struct {
	Post struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Author string `json:"author"`
	} `json:"post"`
	Comment struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"comment"`
}

func (s *testServer) createPost(token, title string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/posts", token, map[string]string{"title": title, "category": "tech", "text": "body"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[idEnvelope](s.t, rec).Post.ID
}

func TestDuplicateRegistrationIsRejected(t *testing.T) {
	s := newTestServer(t)
	s.signup("ada")

	rec := s.do(http.MethodPost, "/user", "", registerBody("ada"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[apperror.ErrorResponse](t, rec)
	assert.Len(t, resp.Errors, 2, "username and email both reported")

	other := registerBody("grace")
	other["email"] = "ada@example.com"
	rec = s.do(http.MethodPost, "/user", "", other)
	assert.Equal(t, http.StatusConflict, rec.Code)

	taken, err := s.store.UsernameTaken(context.Background(), "grace", "")
	require.NoError(t, err)
	assert.False(t, taken, "no record created on conflict")
}

func TestRegistrationValidation(t *testing.T) {
	s := newTestServer(t)
	body := registerBody("ada")
	body["password"] = "short"
	body["email"] = "not-an-email"
	delete(body, "lastname")

	rec := s.do(http.MethodPost, "/user", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[apperror.ErrorResponse](t, rec)
	fields := map[string]bool{}
	for _, v := range resp.Errors {
		fields[v.Field] = true
	}
	assert.True(t, fields["password"])
	assert.True(t, fields["email"])
	assert.True(t, fields["lastname"])
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t)
	s.signup("ada")
	gone := s.signup("gone")
	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/user", gone, nil).Code)

	attempts := []map[string]string{
		{"identifier": "nobody", "password": testPassword},
		{"identifier": "ada", "password": "Wrong1234"},
		{"identifier": "ada@example.com", "password": "Wrong1234"},
		{"identifier": "gone", "password": testPassword},
	}
	var bodies []string
	for _, a := range attempts {
		rec := s.do(http.MethodPost, "/auth/login", "", a)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		bodies = append(bodies, rec.Body.String())
	}
	for _, b := range bodies[1:] {
		assert.Equal(t, bodies[0], b)
	}
	assert.Equal(t, auth.InvalidCredentialsMessage, decode[apperror.ErrorResponse](t, s.do(http.MethodPost, "/auth/login", "", attempts[0])).Error)

	rec := s.do(http.MethodPost, "/auth/login", "", map[string]string{"identifier": "ada@example.com", "password": testPassword})
	assert.Equal(t, http.StatusOK, rec.Code, "email works as identifier")
}

func TestProfileRoutes(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("ada")
	s.signup("grace")

	rec := s.do(http.MethodGet, "/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	update := map[string]string{"username": "ada", "firstname": "Augusta", "lastname": "King"}
	rec = s.do(http.MethodPut, "/user", token, update)
	assert.Equal(t, http.StatusOK, rec.Code, "keeping the own username is allowed")

	update["username"] = "grace"
	rec = s.do(http.MethodPut, "/user", token, update)
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/user", "", nil).Code)
}

func TestPostOwnership(t *testing.T) {
	s := newTestServer(t)
	owner := s.signup("ada")
	other := s.signup("grace")
	postID := s.createPost(owner, "first")

	rec := s.do(http.MethodPut, "/posts/"+postID, other, map[string]string{"title": "hijacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodDelete, "/posts/"+postID, other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPut, "/posts/"+postID, owner, map[string]string{"title": "edited"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "edited", decode[idEnvelope](t, rec).Post.Title)

	rec = s.do(http.MethodDelete, "/posts/"+postID, owner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/posts/"+postID, "", nil).Code)
}

func TestCommentOwnership(t *testing.T) {
	s := newTestServer(t)
	owner := s.signup("ada")
	other := s.signup("grace")
	postID := s.createPost(owner, "first")

	rec := s.do(http.MethodPost, "/posts/"+postID+"/comments", owner, map[string]string{"text": "mine"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	commentID := decode[idEnvelope](t, rec).Comment.ID

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, "/comments/"+commentID, other, map[string]string{"text": "x"}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/comments/"+commentID, other, nil).Code)

	rec = s.do(http.MethodPut, "/comments/"+commentID, owner, map[string]string{"text": "edited"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "edited", decode[idEnvelope](t, rec).Comment.Text)

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/comments/"+commentID, owner, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/comments/"+commentID, owner, nil).Code)
}

func TestCommentOnMissingPost(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("ada")
	missing := store.NewID()

	rec := s.do(http.MethodPost, "/posts/"+missing+"/comments", token, map[string]string{"text": "orphan"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Post not found", decode[apperror.ErrorResponse](t, rec).Error)

	list, err := s.store.ListCommentsByPost(context.Background(), missing)
	require.NoError(t, err)
	assert.Empty(t, list)

	rec = s.do(http.MethodPost, "/posts/not-an-id/comments", token, map[string]string{"text": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLegacyCommentRoute(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("ada")
	postID := s.createPost(token, "first")

	rec := s.do(http.MethodPost, "/comments/"+postID, token, map[string]string{"text": "old client"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/posts/"+postID+"/comments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Comments []struct {
			Post string `json:"post"`
		} `json:"comments"`
	}](t, rec)
	require.Len(t, list.Comments, 1)
	assert.Equal(t, postID, list.Comments[0].Post)
}

func TestPostRoundTrip(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("ada")
	postID := s.createPost(token, "round trip")

	rec := s.do(http.MethodGet, "/posts/"+postID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[struct {
		Post struct {
			Title    string `json:"title"`
			Category string `json:"category"`
			Text     string `json:"text"`
		} `json:"post"`
		Comments []json.RawMessage `json:"comments"`
	}](t, rec)
	assert.Equal(t, "round trip", detail.Post.Title)
	assert.Equal(t, "tech", detail.Post.Category)
	assert.Equal(t, "body", detail.Post.Text)
	assert.NotNil(t, detail.Comments)

	rec = s.do(http.MethodGet, "/posts?limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[struct {
		Total int64             `json:"total"`
		Posts []json.RawMessage `json:"posts"`
	}](t, rec)
	assert.Equal(t, int64(1), feed.Total)
	assert.Len(t, feed.Posts, 1)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/posts?limit=0", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/posts/123", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/posts", token, map[string]string{"title": ""}).Code)
}

func TestTokensAreVerified(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("ada")
	user, err := s.store.FindUserByIdentifier(context.Background(), "ada")
	require.NoError(t, err)

	expiredCfg := s.cfg.Auth
	expiredCfg.TokenTTL = -time.Minute
	expired, err := auth.NewTokenService(expiredCfg).Issue(user.ID)
	require.NoError(t, err)

	forgedCfg := s.cfg.Auth
	forgedCfg.JWTSecret = "another-secret-0123456789"
	forged, err := auth.NewTokenService(forgedCfg).Issue(user.ID)
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"

	for name, tok := range map[string]string{"expired": expired, "forged": forged, "tampered": tampered} {
		rec := s.do(http.MethodPost, "/posts", tok, map[string]string{"title": "x"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/posts", "", map[string]string{"title": "x"}).Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.AppConfig) { c.RateLimit.Max = 2 })

	for range 2 {
		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/posts", "", nil).Code)
	}
	rec := s.do(http.MethodGet, "/posts", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, ratelimit.TooManyRequestsMessage, decode[apperror.ErrorResponse](t, rec).Error)
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	s := newTestServer(t, func(c *config.AppConfig) { c.RateLimit.Max = 2 })

	var codes []int
	for i := range 6 {
		req := httptest.NewRequest(http.MethodGet, api.BasePath+"/posts", nil)
		req.RemoteAddr = "203.0.113.7:4444"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i+1))
		codes = append(codes, s.serve(req).Code)
	}
	assert.Equal(t, []int{
		http.StatusOK, http.StatusOK,
		http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests,
	}, codes)
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	s := newTestServer(t, func(c *config.AppConfig) {
		c.RateLimit.Max = 2
		c.Server.TrustProxy = true
	})

	fromClient := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, api.BasePath+"/posts", nil)
		req.RemoteAddr = "198.51.100.1:8080"
		req.Header.Set("X-Forwarded-For", ip)
		return s.serve(req).Code
	}

	// Each forwarded client has its own window even though all share the proxy socket.
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		assert.Equal(t, http.StatusOK, fromClient(ip), ip)
	}
	assert.Equal(t, http.StatusOK, fromClient("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, fromClient("10.0.0.1"))
}

func TestNonJSONBodyIsRejected(t *testing.T) {
	s := newTestServer(t)
	s.signup("ada")

	req := httptest.NewRequest(http.MethodPost, api.BasePath+"/auth/login", strings.NewReader("identifier=ada"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := s.serve(req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "Content-Type must be application/json", decode[apperror.ErrorResponse](t, rec).Error)

	req = httptest.NewRequest(http.MethodPost, api.BasePath+"/auth/login", strings.NewReader("{}"))
	rec = s.serve(req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code, "missing Content-Type")
	assert.NotEmpty(t, decode[apperror.ErrorResponse](t, rec).Error)

	body := `{"identifier":"ada","password":"` + testPassword + `"}`
	req = httptest.NewRequest(http.MethodPost, api.BasePath+"/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	assert.Equal(t, http.StatusOK, s.serve(req).Code)
}

func TestUpperCaseIDs(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("ada")
	postID := s.createPost(token, "first")
	upperPost := strings.ToUpper(postID)

	rec := s.do(http.MethodGet, "/posts/"+upperPost, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, postID, decode[idEnvelope](t, rec).Post.ID)

	rec = s.do(http.MethodPut, "/posts/"+upperPost, token, map[string]string{"title": "edited"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/posts/"+upperPost+"/comments", token, map[string]string{"text": "shouting"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	commentID := decode[idEnvelope](t, rec).Comment.ID

	rec = s.do(http.MethodPost, "/comments/"+upperPost, token, map[string]string{"text": "old client"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPut, "/comments/"+strings.ToUpper(commentID), token, map[string]string{"text": "edited"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "edited", decode[idEnvelope](t, rec).Comment.Text)

	rec = s.do(http.MethodGet, "/posts/"+postID+"/comments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Comments []struct {
			Post string `json:"post"`
		} `json:"comments"`
	}](t, rec)
	require.Len(t, list.Comments, 2)
	for _, c := range list.Comments {
		assert.Equal(t, postID, c.Post)
	}

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/posts/"+upperPost, token, nil).Code)
}

func TestSecurityHeadersAndHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Request-Id"))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
