package validation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/opinion-manager/apperror"
)

const knownID = "5f1d7f3e9d1b2c3a4e5f6a7b"

type commentRequest struct {
	PostID string `json:"-" path:"postId" validate:"required,mongodb,thing_exists"`
	Text   string `json:"text" validate:"required" msg:"Write something"`
}

type signupRequest struct {
	Username string `json:"username" validate:"required,name_free"`
	Password string `json:"password" validate:"required,password_policy"`
}

type pageRequest struct {
	Limit *int `query:"limit" validate:"omitnil,min=1,max=100"`
	Skip  int  `query:"skip" validate:"gte=0"`
}

type patchRequest struct {
	Title *string `json:"title" validate:"omitnil,min=1"`
}

func newTestValidator(storeErr error) *Validator {
	v := New()
	v.RegisterCheck("thing_exists", NotFound, "Post not found",
		func(ctx context.Context, fl validator.FieldLevel) (bool, error) {
			if storeErr != nil {
				return false, storeErr
			}
			return fl.Field().String() == knownID, nil
		})
	v.RegisterCheck("name_free", Conflict, "Username already registered",
		func(ctx context.Context, fl validator.FieldLevel) (bool, error) {
			return fl.Field().String() != "taken", nil
		})
	return v
}

// serve mounts Request[T] on pattern and records the bound DTO.
func serve[T any](t *testing.T, v *Validator, pattern, method, target, body string) (*httptest.ResponseRecorder, *T) {
	t.Helper()
	var got *T
	r := chi.NewRouter()
	r.With(Request[T](v)).Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext[T](r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec, got
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperror.ErrorResponse {
	t.Helper()
	var resp apperror.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRequestBindsPathAndBody(t *testing.T) {
	rec, got := serve[commentRequest](t, newTestValidator(nil), "/posts/{postId}", http.MethodPost,
		"/posts/"+knownID, `{"text":"hello"}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	require.NotNil(t, got)
	assert.Equal(t, knownID, got.PostID)
	assert.Equal(t, "hello", got.Text)
}

func TestRequestReportsEveryViolation(t *testing.T) {
	rec, got := serve[commentRequest](t, newTestValidator(nil), "/posts/{postId}", http.MethodPost,
		"/posts/not-an-id", `{}`)
	assert.Nil(t, got)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeError(t, rec)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, apperror.FieldViolation{Field: "postId", Location: LocationPath, Message: "The id is not a valid MongoDB format"}, resp.Errors[0])
	assert.Equal(t, apperror.FieldViolation{Field: "text", Location: LocationBody, Message: "Write something"}, resp.Errors[1])
}

func TestRequestNotFoundCheck(t *testing.T) {
	rec, _ := serve[commentRequest](t, newTestValidator(nil), "/posts/{postId}", http.MethodPost,
		"/posts/5f1d7f3e9d1b2c3a4e5f6a70", `{"text":"hello"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "Post not found", resp.Error)
}

func TestRequestInvalidBeatsNotFound(t *testing.T) {
	rec, _ := serve[commentRequest](t, newTestValidator(nil), "/posts/{postId}", http.MethodPost,
		"/posts/5f1d7f3e9d1b2c3a4e5f6a70", `{"text":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "Write something", resp.Error)
	assert.Len(t, resp.Errors, 2)
}

func TestRequestConflictCheck(t *testing.T) {
	rec, _ := serve[signupRequest](t, newTestValidator(nil), "/user", http.MethodPost,
		"/user", `{"username":"taken","password":"Secret123"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Username already registered", decodeError(t, rec).Error)
}

func TestToAppErrorKinds(t *testing.T) {
	v := newTestValidator(nil)
	meta := describe(reflect.TypeOf(signupRequest{}))
	check := func(req signupRequest) *apperror.AppError {
		t.Helper()
		err := v.validate.StructCtx(context.Background(), &req)
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		return v.toAppError(verrs, meta)
	}

	weak := check(signupRequest{Username: "ada", Password: "weak"})
	assert.True(t, apperror.IsValidationError(weak))

	taken := check(signupRequest{Username: "taken", Password: "Secret123"})
	assert.True(t, apperror.IsConflictError(taken))
	assert.False(t, apperror.IsValidationError(taken))

	// An invalid field outranks the conflict, but both are listed.
	both := check(signupRequest{Username: "taken", Password: "weak"})
	assert.True(t, apperror.IsValidationError(both))
	assert.Len(t, both.Details, 2)
}

func TestRequestPasswordPolicy(t *testing.T) {
	rec, _ := serve[signupRequest](t, newTestValidator(nil), "/user", http.MethodPost,
		"/user", `{"username":"ada","password":"weak"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "password", resp.Errors[0].Field)
}

func TestRequestCheckFailureIsInternal(t *testing.T) {
	rec, _ := serve[commentRequest](t, newTestValidator(errors.New("connection refused")), "/posts/{postId}",
		http.MethodPost, "/posts/"+knownID, `{"text":"hello"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperror.GenericInternalMessage, decodeError(t, rec).Error)
}

func TestRequestMalformedJSON(t *testing.T) {
	rec, _ := serve[commentRequest](t, newTestValidator(nil), "/posts/{postId}", http.MethodPost,
		"/posts/"+knownID, `{"text":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON body", decodeError(t, rec).Error)
}

func TestRequestQuery(t *testing.T) {
	v := newTestValidator(nil)

	rec, got := serve[pageRequest](t, v, "/posts", http.MethodGet, "/posts?limit=5&skip=10", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got.Limit)
	assert.Equal(t, 5, *got.Limit)
	assert.Equal(t, 10, got.Skip)

	rec, got = serve[pageRequest](t, v, "/posts", http.MethodGet, "/posts", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, got.Limit)

	rec, _ = serve[pageRequest](t, v, "/posts", http.MethodGet, "/posts?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve[pageRequest](t, v, "/posts", http.MethodGet, "/posts?limit=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, LocationQuery, resp.Errors[0].Location)
}

func TestRequestPartialUpdate(t *testing.T) {
	v := newTestValidator(nil)

	rec, got := serve[patchRequest](t, v, "/p", http.MethodPut, "/p", `{}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, got.Title)

	rec, _ = serve[patchRequest](t, v, "/p", http.MethodPut, "/p", `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPasswordPolicy(t *testing.T) {
	tests := []struct {
		pw   string
		want bool
	}{
		{"Secret123", true},
		{"secret123", false},
		{"SECRET123", false},
		{"SecretABC", false},
		{"Sh0rt", false},
		{strings.Repeat("Aa1", 22), false},
		{"Ünïcödé9x", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PasswordPolicy(tt.pw), tt.pw)
	}
}
