package apperror

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"
)

// WriteJSON serializes data with the given status. A nil data writes no body.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing useful can reach the client now.
		return
	}
}

// WriteError renders err as an ErrorResponse. Errors that are not an *AppError
// become internal errors. Server errors are logged with their cause through the
// request logger, and the client only sees GenericInternalMessage. Rejected
// credentials and ownership denials are logged at debug level.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := FromError(err)
	if !ok {
		appErr = NewInternalError("unexpected error", err)
	}

	if appErr.IsServerError() {
		hlog.FromRequest(r).Error().
			Err(appErr.Err).
			Str("error_message", appErr.Message).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	} else if IsAuthError(appErr) || IsUnauthorizedError(appErr) {
		hlog.FromRequest(r).Debug().
			Str("error_message", appErr.Message).
			Str("path", r.URL.Path).
			Msg("access denied")
	}

	WriteJSON(w, appErr.StatusCode(), appErr.ToResponse())
}
