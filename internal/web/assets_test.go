package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/secrets-app/backend/internal/store"
)

type mapSource map[string]string

func (m mapSource) Download(_ context.Context, key string) ([]byte, string, error) {
	if key == "broken.css" {
		return nil, "", errors.New("connection refused")
	}
	v, ok := m[key]
	if !ok {
		return nil, "", store.ErrNotFound
	}
	return []byte(v), "", nil
}

func TestBucketAssets(t *testing.T) {
	h := BucketAssets(mapSource{"css/styles.css": "body{}"})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "existing object", method: http.MethodGet, path: "/css/styles.css", wantStatus: http.StatusOK, wantBody: "body{}"},
		{name: "head has no body", method: http.MethodHead, path: "/css/styles.css", wantStatus: http.StatusOK},
		{name: "missing object", method: http.MethodGet, path: "/css/nope.css", wantStatus: http.StatusNotFound},
		{name: "root", method: http.MethodGet, path: "/", wantStatus: http.StatusNotFound},
		{name: "traversal is cleaned", method: http.MethodGet, path: "/../css/styles.css", wantStatus: http.StatusOK, wantBody: "body{}"},
		{name: "store failure", method: http.MethodGet, path: "/broken.css", wantStatus: http.StatusBadGateway},
		{name: "post not allowed", method: http.MethodPost, path: "/css/styles.css", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			req.URL.Path = tt.path
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
			}
		})
	}
}

func TestDirAssets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello"), 0o644))

	rec := httptest.NewRecorder()
	DirAssets(dir).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello.txt", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
}
