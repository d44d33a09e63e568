package apperror

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithLogger(buf *bytes.Buffer) *http.Request {
	logger := zerolog.New(buf).Level(zerolog.DebugLevel)
	r := httptest.NewRequest(http.MethodGet, "/posts/1", nil)
	return r.WithContext(logger.WithContext(r.Context()))
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		body    string
		logMsg  string
		logHint string
	}{
		{"media type", NewUnsupportedMediaTypeError("Content-Type must be application/json"),
			http.StatusUnsupportedMediaType, "Content-Type must be application/json", "", ""},
		{"auth", NewAuthError("Invalid token", nil), http.StatusUnauthorized, "Invalid token", "access denied", "Invalid token"},
		{"ownership", NewUnauthorizedError("Not yours", nil), http.StatusForbidden, "Not yours", "access denied", "Not yours"},
		{"server", NewDatabaseError("insert failed", errors.New("dial tcp")), http.StatusInternalServerError,
			GenericInternalMessage, "request failed", "dial tcp"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, GenericInternalMessage, "request failed", "boom"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var logs bytes.Buffer
			rec := httptest.NewRecorder()
			WriteError(rec, requestWithLogger(&logs), tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.body, resp.Error)

			if tc.logMsg == "" {
				assert.Empty(t, logs.String())
				return
			}
			assert.Contains(t, logs.String(), tc.logMsg)
			assert.Contains(t, logs.String(), tc.logHint)
		})
	}
}
