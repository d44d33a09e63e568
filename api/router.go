// Package api assembles the HTTP surface: global middleware, the feature handlers
// and the chain of authentication, validation and ownership each route runs through.
//
// Analogy to Nest.js: this is the AppModule plus the global pipes and guards; every
// feature package contributes its handlers and validation checks, and the routes are
// laid out here in one place.
package api

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/auth"
	"github.com/user/opinion-manager/comments"
	"github.com/user/opinion-manager/config"
	_ "github.com/user/opinion-manager/docs" // registers the swagger document
	"github.com/user/opinion-manager/logging"
	"github.com/user/opinion-manager/posts"
	"github.com/user/opinion-manager/ratelimit"
	"github.com/user/opinion-manager/store"
	"github.com/user/opinion-manager/users"
	"github.com/user/opinion-manager/validation"
)

// BasePath prefixes every API route.
const BasePath = "/opinionmanager/v1"

const (
	postForbiddenMessage    = "You are not the author of this post"
	commentForbiddenMessage = "You are not the author of this comment"

	requestTimeout = 30 * time.Second
)

// Deps is everything the router needs from main.
type Deps struct {
	Store    store.Store
	Tokens   *auth.TokenService
	Counters ratelimit.CounterStore
	Logger   zerolog.Logger
	Config   *config.AppConfig
}

// NewRouter builds the full handler tree.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	st := deps.Store

	// Services encapsulate business logic; handlers only translate HTTP.
	// The dependencies are injected by hand here, Nest.js would use its DI container.
	authHandlers := auth.NewHandlers(auth.NewService(st, deps.Tokens))
	userHandlers := users.NewHandlers(users.NewService(st, cfg.Auth.BcryptCost))
	postHandlers := posts.NewHandlers(posts.NewService(st))
	commentHandlers := comments.NewHandlers(comments.NewService(st))

	v := validation.New()
	users.RegisterChecks(v, st)
	posts.RegisterChecks(v, st)
	comments.RegisterChecks(v, st)

	authenticate := auth.Authenticate(deps.Tokens, st)
	postOwner := auth.OwnerGuard("postId", st.GetPost,
		func(p *store.Post) string { return p.AuthorID }, postForbiddenMessage)
	commentOwner := auth.OwnerGuard("commentId", st.GetComment,
		func(c *store.Comment) string { return c.AuthorID }, commentForbiddenMessage)

	r := chi.NewRouter()

	// Global middleware. Behind a trusted proxy RealIP must come before logging and
	// rate limiting so both see the client address rather than the proxy's. Without
	// one the forwarding headers are client input and RemoteAddr is the only key.
	if cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	for _, mw := range logging.Middleware(deps.Logger) {
		r.Use(mw)
	}
	r.Use(recoverer)
	r.Use(middleware.CleanPath)
	r.Use(securityHeaders...)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Request-Id", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(ratelimit.New(deps.Counters, cfg.RateLimit.Max, cfg.RateLimit.Window).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperror.WriteError(w, r, apperror.NewNotFoundError("Route not found", nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperror.WriteJSON(w, http.StatusMethodNotAllowed, apperror.ErrorResponse{Error: "Method not allowed"})
	})

	r.Get("/healthz", healthz(st))

	// Swagger UI; doc.json is served by the same handler.
	r.Get("/api-docs/*", httpSwagger.Handler(httpSwagger.URL("/api-docs/doc.json")))

	r.Route(BasePath, func(r chi.Router) {
		r.Use(middleware.StripSlashes)
		r.Use(requireJSON)
		r.Use(middleware.Timeout(requestTimeout))

		r.Route("/auth", func(r chi.Router) {
			r.With(validation.Request[auth.LoginRequest](v)).Post("/login", authHandlers.HandleLogin())
		})

		r.Route("/user", func(r chi.Router) {
			r.With(validation.Request[users.RegisterRequest](v)).Post("/", userHandlers.HandleRegister())

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Get("/", userHandlers.HandleGetProfile())
				r.With(validation.Request[users.UpdateUserRequest](v)).Put("/", userHandlers.HandleUpdateProfile())
				r.Delete("/", userHandlers.HandleDeactivate())
			})
		})

		r.Route("/posts", func(r chi.Router) {
			r.With(validation.Request[posts.ListPostsRequest](v)).Get("/", postHandlers.HandleList())
			r.With(authenticate, validation.Request[posts.CreatePostRequest](v)).Post("/", postHandlers.HandleCreate())

			r.Route("/{postId}", func(r chi.Router) {
				r.Use(normalizeIDs("postId"))
				r.With(validation.Request[posts.PostIDRequest](v)).Get("/", postHandlers.HandleGet())
				r.With(authenticate, validation.Request[posts.UpdatePostRequest](v), postOwner).Put("/", postHandlers.HandleUpdate())
				r.With(authenticate, validation.Request[posts.PostIDRequest](v), postOwner).Delete("/", postHandlers.HandleDelete())

				r.With(validation.Request[comments.PostCommentsRequest](v)).Get("/comments", commentHandlers.HandleListByPost())
				r.With(authenticate, validation.Request[comments.CreateCommentRequest](v)).Post("/comments", commentHandlers.HandleCreate())
			})
		})

		r.Route("/comments", func(r chi.Router) {
			// The parameter is only matched below this router, so it is normalized per route.
			commentID := normalizeIDs("commentId")
			r.With(commentID, authenticate, validation.Request[comments.UpdateCommentRequest](v), commentOwner).Put("/{commentId}", commentHandlers.HandleUpdate())
			r.With(commentID, authenticate, validation.Request[comments.CommentIDRequest](v), commentOwner).Delete("/{commentId}", commentHandlers.HandleDelete())
			// Older clients post comments to /comments/{postId}.
			r.With(commentID, authenticate, withParamAlias("commentId", "postId"), validation.Request[comments.CreateCommentRequest](v)).
				Post("/{commentId}", commentHandlers.HandleCreate())
		})
	})

	return r
}

// securityHeaders are the static response headers helmet sets by default.
var securityHeaders = []func(http.Handler) http.Handler{
	middleware.SetHeader("X-Content-Type-Options", "nosniff"),
	middleware.SetHeader("X-Frame-Options", "SAMEORIGIN"),
	middleware.SetHeader("Referrer-Policy", "no-referrer"),
	middleware.SetHeader("X-DNS-Prefetch-Control", "off"),
	middleware.SetHeader("Strict-Transport-Security", "max-age=15552000; includeSubDomains"),
	middleware.SetHeader("Cross-Origin-Opener-Policy", "same-origin"),
	middleware.SetHeader("X-Permitted-Cross-Domain-Policies", "none"),
}

// withParamAlias copies the URL parameter from into the name to. chi does not allow
// two different parameter names at the same position of one route tree, so the
// legacy POST /comments/{postId} is registered under {commentId} and renamed here.
func withParamAlias(from, to string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				rctx.URLParams.Add(to, chi.URLParam(r, from))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// recoverer turns a panic into the standard 500 body and logs the stack.
// It wraps the handler chain after the request logger so the panic is logged
// with the request id.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				zerolog.Ctx(r.Context()).Error().
					Interface("panic", rvr).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				apperror.WriteError(w, r, apperror.NewInternalError("panic recovered", nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status string `json:"status" example:"ok"`
}

// healthz answers 200 while the store responds to a ping, 503 otherwise.
func healthz(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
			apperror.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
		apperror.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
