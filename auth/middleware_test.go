package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/store"
	"github.com/user/opinion-manager/store/memstore"
)

func seedUser(t *testing.T, s *memstore.Store, username string, active bool) *store.User {
	t.Helper()
	u := &store.User{Username: username, Email: username + "@example.com", PasswordHash: "x", Active: active}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) apperror.ErrorResponse {
	t.Helper()
	var resp apperror.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuthenticate(t *testing.T) {
	users := memstore.New()
	tokens := newTestTokens(t)
	active := seedUser(t, users, "ada", true)
	inactive := seedUser(t, users, "gone", false)

	activeToken, err := tokens.Issue(active.ID)
	require.NoError(t, err)
	inactiveToken, err := tokens.Issue(inactive.ID)
	require.NoError(t, err)
	unknownToken, err := tokens.Issue(store.NewID())
	require.NoError(t, err)

	var seen string
	h := Authenticate(tokens, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		if u, ok := UserFromContext(r.Context()); assert.True(t, ok) {
			assert.Equal(t, "ada", u.Username)
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + activeToken, http.StatusOK},
		{"lower-case scheme", "bearer " + activeToken, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + activeToken, http.StatusUnauthorized},
		{"no token", "Bearer ", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"deactivated", "Bearer " + inactiveToken, http.StatusUnauthorized},
		{"unknown user", "Bearer " + unknownToken, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/user", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, active.ID, seen)
			} else {
				assert.Empty(t, seen)
				assert.NotEmpty(t, errorBody(t, rec).Error)
			}
		})
	}
}

type doc struct {
	ID     string
	Author string
}

func TestOwnerGuard(t *testing.T) {
	owner := store.NewID()
	docs := map[string]doc{"d1": {ID: "d1", Author: owner}}
	lookup := func(_ context.Context, id string) (doc, error) {
		d, ok := docs[id]
		if !ok {
			return doc{}, store.ErrNotFound
		}
		return d, nil
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get("X-Test-User"); id != "" {
				r = r.WithContext(NewContextWithUser(r.Context(), &store.User{ID: id}))
			}
			next.ServeHTTP(w, r)
		})
	})
	var reached []string
	r.With(OwnerGuard("docId", lookup, func(d doc) string { return d.Author }, "Not your document")).
		Delete("/docs/{docId}", func(w http.ResponseWriter, r *http.Request) {
			reached = append(reached, chi.URLParam(r, "docId"))
			w.WriteHeader(http.StatusOK)
		})

	do := func(path, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, path, nil)
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("/docs/d1", owner).Code)

	rec := do("/docs/d1", store.NewID())
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not your document", errorBody(t, rec).Error)

	assert.Equal(t, http.StatusNotFound, do("/docs/missing", owner).Code)
	assert.Equal(t, http.StatusUnauthorized, do("/docs/d1", "").Code)

	// Only the owner's request got past the guard.
	assert.Equal(t, []string{"d1"}, reached)
}
