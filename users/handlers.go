package users

import (
	"net/http"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/auth"
	"github.com/user/opinion-manager/validation"
)

// Handlers serves /user. Every route except registration runs behind auth.Authenticate.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleRegister godoc
// @Summary Register an account
// @Description Creates an active account. Username and email must not be registered yet.
// @Tags Users
// @Accept json
// @Produce json
// @Param registerBody body users.RegisterRequest true "Account details"
// @Success 201 {object} users.UserEnvelope "User created"
// @Failure 400 {object} apperror.ErrorResponse "Invalid or missing fields"
// @Failure 409 {object} apperror.ErrorResponse "Username or email already registered"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /user [post]
func (h *Handlers) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := validation.FromContext[RegisterRequest](r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("register request not bound", nil))
			return
		}
		user, err := h.service.Register(r.Context(), *req)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		apperror.WriteJSON(w, http.StatusCreated, UserEnvelope{Msg: "User created", User: toResponse(user)})
	}
}

// HandleGetProfile godoc
// @Summary Get the authenticated user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} users.UserEnvelope
// @Failure 401 {object} apperror.ErrorResponse "Missing or invalid token"
// @Router /user [get]
func (h *Handlers) HandleGetProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Authenticate already loaded the user.
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewAuthError("There is no token in the request", nil))
			return
		}
		apperror.WriteJSON(w, http.StatusOK, UserEnvelope{User: toResponse(user)})
	}
}

// HandleUpdateProfile godoc
// @Summary Update the authenticated user
// @Description Replaces username, first and last name. The password changes only when sent.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userBody body users.UpdateUserRequest true "New profile"
// @Success 200 {object} users.UserEnvelope "User updated"
// @Failure 400 {object} apperror.ErrorResponse "Invalid or missing fields"
// @Failure 401 {object} apperror.ErrorResponse "Missing or invalid token"
// @Failure 409 {object} apperror.ErrorResponse "Username already registered"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /user [put]
func (h *Handlers) HandleUpdateProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewAuthError("There is no token in the request", nil))
			return
		}
		req, ok := validation.FromContext[UpdateUserRequest](r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("update request not bound", nil))
			return
		}
		user, err := h.service.Update(r.Context(), userID, *req)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		apperror.WriteJSON(w, http.StatusOK, UserEnvelope{Msg: "User updated", User: toResponse(user)})
	}
}

// HandleDeactivate godoc
// @Summary Deactivate the authenticated user
// @Description Clears the active flag. The account can no longer log in and its tokens stop working.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} users.MessageResponse "User deactivated"
// @Failure 401 {object} apperror.ErrorResponse "Missing or invalid token"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /user [delete]
func (h *Handlers) HandleDeactivate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewAuthError("There is no token in the request", nil))
			return
		}
		if err := h.service.Deactivate(r.Context(), userID); err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		apperror.WriteJSON(w, http.StatusOK, MessageResponse{Msg: "User deactivated"})
	}
}
