package api

import (
	"mime"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/store"
)

const unsupportedMediaTypeMessage = "Content-Type must be application/json"

// requireJSON rejects request bodies that are not application/json with a 415
// error body. Requests without a body pass, as chi's AllowContentType does.
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			apperror.WriteError(w, r, apperror.NewUnsupportedMediaTypeError(unsupportedMediaTypeMessage))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// normalizeIDs lower-cases the named URL parameters when they hold a valid id,
// so "5F1D..." and "5f1d..." address the same document.
func normalizeIDs(params ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				for i, key := range rctx.URLParams.Keys {
					if slices.Contains(params, key) {
						rctx.URLParams.Values[i] = store.NormalizeID(rctx.URLParams.Values[i])
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
