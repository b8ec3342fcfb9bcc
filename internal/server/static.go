package server

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/puntazo/puntazo/internal/httputil"
)

// newNoStoreFileServer serves catalog documents and clips from fsys.
// Feeds change every few minutes, so responses are never cached.
// Directory listings are refused.
func newNoStoreFileServer(fsys fs.FS) http.Handler {
	fileServer := http.FileServerFS(fsys)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" || name == "." {
			httputil.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		info, err := fs.Stat(fsys, name)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
			httputil.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		fileServer.ServeHTTP(w, r)
	})
}
