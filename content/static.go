// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package content

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
)

// StaticDirError occurs when the prebuilt asset directory does not
// exist or is not a directory.
type StaticDirError struct {
	Dir   string
	Cause error
}

// Error implements the error interface.
func (e StaticDirError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("static assets: %s is not a directory", e.Dir)
	}
	return fmt.Sprintf("static assets: %s: %s", e.Dir, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e StaticDirError) Unwrap() error {
	return e.Cause
}

// Static serves prebuilt assets from a filesystem directory. Requests
// that match no file fall back to index.html so client-side routing
// keeps working after a full page reload.
type Static struct {
	fsys  fs.FS
	index []byte
	files http.Handler
}

// NewStatic serves the given directory. The directory must exist;
// callers wanting graceful degradation should check existence first or
// use [Select], which does.
func NewStatic(dir string, log *slog.Logger) (*Static, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, StaticDirError{Dir: dir, Cause: err}
	}
	if !info.IsDir() {
		return nil, StaticDirError{Dir: dir}
	}

	fsys := os.DirFS(dir)

	index, err := fs.ReadFile(fsys, "index.html")
	if err != nil {
		// Serve what is there; unmatched paths will 404.
		log.Warn("static asset directory has no index.html", slog.String("dir", dir))
		index = nil
	}

	return &Static{
		fsys:  fsys,
		index: index,
		files: http.FileServer(http.FS(fsys)),
	}, nil
}

// Kind implements the [Strategy] interface.
func (s *Static) Kind() Kind {
	return KindStatic
}

// ServeHTTP implements the http.Handler interface.
func (s *Static) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, fmt.Sprintf("method %s not allowed", r.Method), http.StatusMethodNotAllowed)
		return
	}

	requested := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if requested != "" && requested != "." && fs.ValidPath(requested) {
		_, err := fs.Stat(s.fsys, requested)
		if err == nil {
			s.files.ServeHTTP(w, r)
			return
		}
	}

	if s.index == nil {
		s.files.ServeHTTP(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.index)
}
