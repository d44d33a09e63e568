package posts

import (
	"net/http"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/auth"
	"github.com/user/opinion-manager/comments"
	"github.com/user/opinion-manager/validation"
)

// Handlers serves /posts. Requests arrive already bound and validated; mutations
// also pass auth.Authenticate and the post ownership guard first.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleList godoc
// @Summary List posts
// @Description Newest first. limit defaults to 20 (max 100).
// @Tags Posts
// @Produce json
// @Param limit query int false "Page size" minimum(1) maximum(100)
// @Param skip query int false "Posts to skip" minimum(0)
// @Success 200 {object} posts.FeedResponse
// @Failure 400 {object} apperror.ErrorResponse "Invalid paging parameters"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /posts [get]
func (h *Handlers) HandleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := validation.FromContext[ListPostsRequest](r.Context())
		if !ok {
			req = &ListPostsRequest{}
		}
		list, total, err := h.service.List(r.Context(), req.Limit, req.Skip)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		resp := FeedResponse{Total: total, Posts: make([]PostResponse, 0, len(list))}
		for i := range list {
			resp.Posts = append(resp.Posts, toResponse(&list[i]))
		}
		apperror.WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleGet godoc
// @Summary Get a post with its comments
// @Tags Posts
// @Produce json
// @Param postId path string true "Post id" format(mongoid)
// @Success 200 {object} posts.PostDetailResponse
// @Failure 400 {object} apperror.ErrorResponse "The id is not a valid MongoDB format"
// @Failure 404 {object} apperror.ErrorResponse "Post not found"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /posts/{postId} [get]
func (h *Handlers) HandleGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := validation.FromContext[PostIDRequest](r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("post id not bound", nil))
			return
		}
		post, list, err := h.service.Get(r.Context(), req.PostID)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		apperror.WriteJSON(w, http.StatusOK, PostDetailResponse{
			Post:     toResponse(post),
			Comments: comments.ToResponses(list),
		})
	}
}

// HandleCreate godoc
// @Summary Publish a post
// @Tags Posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param postBody body posts.CreatePostRequest true "New post"
// @Success 201 {object} posts.PostEnvelope "Post created"
// @Failure 400 {object} apperror.ErrorResponse "Invalid or missing fields"
// @Failure 401 {object} apperror.ErrorResponse "Missing or invalid token"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /posts [post]
func (h *Handlers) HandleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewAuthError("There is no token in the request", nil))
			return
		}
		req, ok := validation.FromContext[CreatePostRequest](r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("post request not bound", nil))
			return
		}
		post, err := h.service.Create(r.Context(), userID, *req)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		apperror.WriteJSON(w, http.StatusCreated, PostEnvelope{Msg: "Post created", Post: toResponse(post)})
	}
}

// HandleUpdate godoc
// @Summary Edit a post
// @Description Only the author may edit. Fields that are not sent keep their value.
// @Tags Posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post id" format(mongoid)
// @Param postBody body posts.UpdatePostRequest true "Fields to change"
// @Success 200 {object} posts.PostEnvelope "Post updated"
// @Failure 400 {object} apperror.ErrorResponse "Invalid data"
// @Failure 401 {object} apperror.ErrorResponse "Missing or invalid token"
// @Failure 403 {object} apperror.ErrorResponse "Not the author of the post"
// @Failure 404 {object} apperror.ErrorResponse "Post not found"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /posts/{postId} [put]
func (h *Handlers) HandleUpdate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := validation.FromContext[UpdatePostRequest](r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("post request not bound", nil))
			return
		}
		post, err := h.service.Update(r.Context(), *req)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		apperror.WriteJSON(w, http.StatusOK, PostEnvelope{Msg: "Post updated", Post: toResponse(post)})
	}
}

// HandleDelete godoc
// @Summary Delete a post
// @Description Only the author may delete. The post's comments are deleted with it.
// @Tags Posts
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post id" format(mongoid)
// @Success 200 {object} posts.MessageResponse "Post deleted"
// @Failure 401 {object} apperror.ErrorResponse "Missing or invalid token"
// @Failure 403 {object} apperror.ErrorResponse "Not the author of the post"
// @Failure 404 {object} apperror.ErrorResponse "Post not found"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /posts/{postId} [delete]
func (h *Handlers) HandleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := validation.FromContext[PostIDRequest](r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("post id not bound", nil))
			return
		}
		if err := h.service.Delete(r.Context(), req.PostID); err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		apperror.WriteJSON(w, http.StatusOK, MessageResponse{Msg: "Post deleted"})
	}
}
