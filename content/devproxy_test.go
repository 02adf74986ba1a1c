// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package content

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/z5labs/slipway/internal/noop"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDevProxy(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the url can not be parsed", func(t *testing.T) {
			_, err := NewDevProxy(context.Background(), "://not-a-url", slog.New(noop.LogHandler{}))

			var derr DevServerUnreachableError
			assert.ErrorAs(t, err, &derr)
		})

		t.Run("if the dev server does not answer the probe", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			srv.Close()

			_, err := NewDevProxy(context.Background(), srv.URL, slog.New(noop.LogHandler{}))

			var derr DevServerUnreachableError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, srv.URL, derr.URL)
		})
	})
}

func TestDevProxy_ServeHTTP(t *testing.T) {
	t.Run("will forward requests to the dev server", func(t *testing.T) {
		t.Run("if it is reachable", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = w.Write([]byte("<html>" + r.URL.Path + "</html>"))
			}))
			defer srv.Close()

			p, err := NewDevProxy(context.Background(), srv.URL, slog.New(noop.LogHandler{}))
			require.Nil(t, err)

			w := httptest.NewRecorder()
			p.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/src/main.tsx", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), "/src/main.tsx")
		})
	})

	t.Run("will answer 502", func(t *testing.T) {
		t.Run("if the dev server dies after the proxy was mounted", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			p, err := NewDevProxy(context.Background(), srv.URL, slog.New(noop.LogHandler{}))
			require.Nil(t, err)

			srv.Close()

			w := httptest.NewRecorder()
			p.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/home", nil))

			assert.Equal(t, http.StatusBadGateway, w.Code)
			assert.JSONEq(t, `{"message":"dev server unavailable"}`, w.Body.String())
		})
	})

	t.Run("will report a fatal fault", func(t *testing.T) {
		t.Run("if enough consecutive failures open the circuit", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			p, err := NewDevProxy(context.Background(), srv.URL, slog.New(noop.LogHandler{}))
			require.Nil(t, err)

			srv.Close()

			for i := 0; i < 6; i++ {
				w := httptest.NewRecorder()
				p.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/home", nil))
				assert.Equal(t, http.StatusBadGateway, w.Code)
			}

			select {
			case err := <-p.Fatal():
				var ferr FatalError
				assert.ErrorAs(t, err, &ferr)
			case <-time.After(time.Second):
				t.Fatal("expected a fatal fault to be reported")
			}
		})
	})
}
