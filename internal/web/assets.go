package web

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/ayush/secrets-app/backend/internal/logutil"
	"github.com/ayush/secrets-app/backend/internal/store"
)

// ObjectSource is a key/value blob store, such as a MinIO bucket.
type ObjectSource interface {
	Download(ctx context.Context, key string) ([]byte, string, error)
}

// BucketAssets serves files from an object store. The request path, with
// any mount prefix already stripped, is the object key.
func BucketAssets(src ObjectSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		key := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if key == "" || key == "." {
			http.NotFound(w, r)
			return
		}

		data, contentType, err := src.Download(r.Context(), key)
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			log := logutil.GetOrDefault(r.Context())
			log.Error().Err(err).Str("key", key).Msg("Unable to load asset")
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}
		if contentType == "" || contentType == "application/octet-stream" {
			if byExt := mime.TypeByExtension(path.Ext(key)); byExt != "" {
				contentType = byExt
			}
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(data)
	})
}

// DirAssets serves files from a local directory.
func DirAssets(dir string) http.Handler {
	return http.FileServer(http.Dir(dir))
}
