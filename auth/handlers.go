package auth

import (
	"net/http"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/validation"
)

// Handlers exposes the auth service over HTTP.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleLogin godoc
// @Summary Log in
// @Description Exchanges a username or email and a password for a bearer token.
// @Description Every kind of credential failure returns the same message.
// @Tags Auth
// @Accept json
// @Produce json
// @Param loginBody body auth.LoginRequest true "Credentials"
// @Success 200 {object} auth.LoginResponse "Login successful"
// @Failure 400 {object} apperror.ErrorResponse "Missing identifier or password"
// @Failure 401 {object} apperror.ErrorResponse "Incorrect credentials"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /auth/login [post]
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Bound and validated by validation.Request[LoginRequest].
		req, ok := validation.FromContext[LoginRequest](r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("login request not bound", nil))
			return
		}

		resp, err := h.service.Login(r.Context(), *req)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		apperror.WriteJSON(w, http.StatusOK, resp)
	}
}
