package comments

import (
	"net/http"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/auth"
	"github.com/user/opinion-manager/validation"
)

// Handlers serves comment routes. Like the other handlers it assumes the request
// was bound by validation.Request and, for mutations, passed the ownership guard.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleCreate godoc
// @Summary Comment on a post
// @Description Also reachable as POST /comments/{postId}.
// @Tags Comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post id" format(mongoid)
// @Param commentBody body comments.CreateCommentRequest true "Comment"
// @Success 201 {object} comments.CommentEnvelope "Comment created"
// @Failure 400 {object} apperror.ErrorResponse "Invalid data"
// @Failure 401 {object} apperror.ErrorResponse "Missing or invalid token"
// @Failure 404 {object} apperror.ErrorResponse "Post not found"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /posts/{postId}/comments [post]
func (h *Handlers) HandleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewAuthError("There is no token in the request", nil))
			return
		}
		req, ok := validation.FromContext[CreateCommentRequest](r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("comment request not bound", nil))
			return
		}
		c, err := h.service.Create(r.Context(), userID, req.PostID, req.Text)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		apperror.WriteJSON(w, http.StatusCreated, CommentEnvelope{Msg: "Comment created", Comment: ToResponse(c)})
	}
}

// HandleListByPost godoc
// @Summary List the comments of a post
// @Description Oldest first.
// @Tags Comments
// @Produce json
// @Param postId path string true "Post id" format(mongoid)
// @Success 200 {object} comments.CommentListResponse
// @Failure 400 {object} apperror.ErrorResponse "The id is not a valid MongoDB format"
// @Failure 404 {object} apperror.ErrorResponse "Post not found"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /posts/{postId}/comments [get]
func (h *Handlers) HandleListByPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := validation.FromContext[PostCommentsRequest](r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("post id not bound", nil))
			return
		}
		list, err := h.service.ListByPost(r.Context(), req.PostID)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		apperror.WriteJSON(w, http.StatusOK, CommentListResponse{Comments: ToResponses(list)})
	}
}

// HandleUpdate godoc
// @Summary Edit a comment
// @Description Only the author may edit.
// @Tags Comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param commentId path string true "Comment id" format(mongoid)
// @Param commentBody body comments.UpdateCommentRequest true "New text"
// @Success 200 {object} comments.CommentEnvelope "Comment updated"
// @Failure 400 {object} apperror.ErrorResponse "Invalid data"
// @Failure 401 {object} apperror.ErrorResponse "Missing or invalid token"
// @Failure 403 {object} apperror.ErrorResponse "Not the author of the comment"
// @Failure 404 {object} apperror.ErrorResponse "Comment not found"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /comments/{commentId} [put]
func (h *Handlers) HandleUpdate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := validation.FromContext[UpdateCommentRequest](r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("comment request not bound", nil))
			return
		}
		c, err := h.service.Update(r.Context(), req.CommentID, req.Text)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		apperror.WriteJSON(w, http.StatusOK, CommentEnvelope{Msg: "Comment updated", Comment: ToResponse(c)})
	}
}

// HandleDelete godoc
// @Summary Delete a comment
// @Description Only the author may delete.
// @Tags Comments
// @Produce json
// @Security BearerAuth
// @Param commentId path string true "Comment id" format(mongoid)
// @Success 200 {object} comments.MessageResponse "Comment deleted"
// @Failure 401 {object} apperror.ErrorResponse "Missing or invalid token"
// @Failure 403 {object} apperror.ErrorResponse "Not the author of the comment"
// @Failure 404 {object} apperror.ErrorResponse "Comment not found"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /comments/{commentId} [delete]
func (h *Handlers) HandleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := validation.FromContext[CommentIDRequest](r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("comment id not bound", nil))
			return
		}
		if err := h.service.Delete(r.Context(), req.CommentID); err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		apperror.WriteJSON(w, http.StatusOK, MessageResponse{Msg: "Comment deleted"})
	}
}
