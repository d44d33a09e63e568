package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestRegisteredDocumentIsValid(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var doc struct {
		BasePath    string                     `json:"basePath"`
		Paths       map[string]json.RawMessage `json:"paths"`
		Definitions map[string]json.RawMessage `json:"definitions"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, "/opinionmanager/v1", doc.BasePath)
	for _, p := range []string{"/auth/login", "/user", "/posts", "/posts/{postId}", "/posts/{postId}/comments", "/comments/{commentId}"} {
		assert.Contains(t, doc.Paths, p)
	}
	assert.Contains(t, doc.Definitions, "apperror.ErrorResponse")
}
