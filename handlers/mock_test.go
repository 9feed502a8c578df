package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3gate/apigw"
)

func TestMockHandler(t *testing.T) {
	h := NewMockHandler()
	parser := apigw.NewRequestParser(true)

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		contentType string
		base64      bool
	}{
		{"List", http.MethodGet, "/cats/", `["cats/mock-1.jpg","cats/mock-2.jpg"]`, "application/json", false},
		{"Get", http.MethodGet, "/cats/a.jpg", base64.StdEncoding.EncodeToString([]byte("Mock content for object cats/a.jpg")), "text/plain", true},
		{"Put", http.MethodPut, "/cats/a.jpg", "new cats/a.jpg is uploaded", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := parser.NewRequest(context.Background(), tt.method, tt.path, nil, "", false)
			require.NoError(t, err)

			resp := h.Handle(req)
			require.NoError(t, resp.Error)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.body, resp.Body)
			assert.Equal(t, tt.contentType, resp.Headers.Get("Content-Type"))
			assert.Equal(t, tt.base64, resp.IsBase64Encoded)
		})
	}
}

func TestMockHandler_Unsupported(t *testing.T) {
	resp := NewMockHandler().Handle(&apigw.Request{Operation: apigw.UnsupportedOperation, Method: http.MethodDelete})
	assert.ErrorIs(t, resp.Error, apigw.ErrUnsupportedMethod)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
