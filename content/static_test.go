// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package content

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/z5labs/slipway/internal/noop"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStatic(t *testing.T, files map[string]string) *Static {
	t.Helper()

	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.Nil(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.Nil(t, os.WriteFile(p, []byte(body), 0o644))
	}

	s, err := NewStatic(dir, slog.New(noop.LogHandler{}))
	require.Nil(t, err)
	return s
}

func TestNewStatic(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the directory does not exist", func(t *testing.T) {
			_, err := NewStatic(filepath.Join(t.TempDir(), "missing"), slog.New(noop.LogHandler{}))

			var serr StaticDirError
			assert.ErrorAs(t, err, &serr)
		})

		t.Run("if the path is a regular file", func(t *testing.T) {
			f := filepath.Join(t.TempDir(), "not-a-dir")
			require.Nil(t, os.WriteFile(f, []byte("x"), 0o644))

			_, err := NewStatic(f, slog.New(noop.LogHandler{}))

			var serr StaticDirError
			assert.ErrorAs(t, err, &serr)
		})
	})
}

func TestStatic_ServeHTTP(t *testing.T) {
	t.Run("will serve the requested file", func(t *testing.T) {
		t.Run("if it exists", func(t *testing.T) {
			s := newTestStatic(t, map[string]string{
				"index.html":    "<html>shell</html>",
				"assets/app.js": "console.log('hi')",
			})

			w := httptest.NewRecorder()
			s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/app.js", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), "console.log")
		})
	})

	t.Run("will fall back to index.html", func(t *testing.T) {
		t.Run("if the path matches no file", func(t *testing.T) {
			s := newTestStatic(t, map[string]string{
				"index.html": "<html>shell</html>",
			})

			w := httptest.NewRecorder()
			s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/client/route", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
			assert.Contains(t, w.Body.String(), "shell")
		})
	})

	t.Run("will answer 404", func(t *testing.T) {
		t.Run("if the path matches no file and no index.html exists", func(t *testing.T) {
			s := newTestStatic(t, map[string]string{
				"assets/app.js": "console.log('hi')",
			})

			w := httptest.NewRecorder()
			s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/client/route", nil))

			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	})

	t.Run("will answer 405", func(t *testing.T) {
		t.Run("if the method is not GET or HEAD", func(t *testing.T) {
			s := newTestStatic(t, map[string]string{
				"index.html": "<html>shell</html>",
			})

			w := httptest.NewRecorder()
			s.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		})
	})
}
