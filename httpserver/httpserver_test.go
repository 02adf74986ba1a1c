// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/z5labs/slipway/health"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRuntime_Run(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if it fails to listen", func(t *testing.T) {
			listenErr := errors.New("failed to listen")
			rt := NewRuntime(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			rt.listen = func(network, addr string) (net.Listener, error) {
				return nil, listenErr
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err := rt.Run(ctx)

			var lerr ListenError
			require.ErrorAs(t, err, &lerr)
			assert.ErrorIs(t, err, listenErr)
		})
	})

	t.Run("will serve the handler", func(t *testing.T) {
		t.Run("if the listener binds", func(t *testing.T) {
			readiness := &health.Readiness{}
			readiness.Ready()

			rt := NewRuntime(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte(`{"ok":true}`))
				}),
				Readiness(readiness),
			)

			addrCh := make(chan string, 1)
			rt.listen = func(network, addr string) (net.Listener, error) {
				ls, err := net.Listen(network, "127.0.0.1:0")
				if err != nil {
					return nil, err
				}
				addrCh <- ls.Addr().String()
				return ls, nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return rt.Run(gctx)
			})

			addr := <-addrCh

			resp, err := http.Get(fmt.Sprintf("http://%s/api/ping", addr))
			require.Nil(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			resp, err = http.Get(fmt.Sprintf("http://%s/health/readiness", addr))
			require.Nil(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			resp, err = http.Get(fmt.Sprintf("http://%s/health/liveness", addr))
			require.Nil(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			cancel()
			assert.Nil(t, g.Wait())
		})
	})

	t.Run("will shut down gracefully", func(t *testing.T) {
		t.Run("if the context is canceled", func(t *testing.T) {
			rt := NewRuntime(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			rt.listen = func(network, addr string) (net.Listener, error) {
				return net.Listen(network, "127.0.0.1:0")
			}

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := rt.Run(ctx)
			assert.Nil(t, err)
		})
	})
}
