// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package httpclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("will retry failed requests", func(t *testing.T) {
		t.Run("if the server recovers within the retry budget", func(t *testing.T) {
			var calls atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) < 3 {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			c := NewClient(
				RetryRequests(
					MaxAttempts(3),
					MinWaitDuration(time.Millisecond),
					MaxWaitDuration(10*time.Millisecond),
				),
			)

			resp, err := c.Get(srv.URL)
			require.Nil(t, err)
			defer func() {
				_ = resp.Body.Close()
			}()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, int64(3), calls.Load())
		})
	})

	t.Run("will not retry", func(t *testing.T) {
		t.Run("if no retry option is given", func(t *testing.T) {
			var calls atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			c := NewClient()

			resp, err := c.Get(srv.URL)
			require.Nil(t, err)
			defer func() {
				_ = resp.Body.Close()
			}()

			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.Equal(t, int64(1), calls.Load())
		})
	})
}

func TestCircuitBreaker(t *testing.T) {
	t.Run("will pass responses through", func(t *testing.T) {
		t.Run("if the server answers successfully", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			c := &http.Client{
				Transport: RoundTripperWith(http.DefaultTransport, CircuitBreaker()),
			}

			resp, err := c.Get(srv.URL)
			require.Nil(t, err)
			defer func() {
				_ = resp.Body.Close()
			}()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})

		t.Run("if the server answers with an error status code", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer srv.Close()

			c := &http.Client{
				Transport: RoundTripperWith(http.DefaultTransport, CircuitBreaker()),
			}

			// error status codes count against the circuit but the
			// response still reaches the caller
			resp, err := c.Get(srv.URL)
			require.Nil(t, err)
			defer func() {
				_ = resp.Body.Close()
			}()

			assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		})
	})

	t.Run("will open the circuit", func(t *testing.T) {
		t.Run("if consecutive failures reach the trip count", func(t *testing.T) {
			var calls atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer srv.Close()

			opened := make(chan error, 1)
			c := &http.Client{
				Transport: RoundTripperWith(
					http.DefaultTransport,
					CircuitBreaker(
						CircuitName("test"),
						CircuitTripCount(2),
						CircuitOnOpen(func(err error) {
							select {
							case opened <- err:
							default:
							}
						}),
					),
				),
			}

			for i := 0; i < 2; i++ {
				resp, err := c.Get(srv.URL)
				require.Nil(t, err)
				_ = resp.Body.Close()
			}

			select {
			case err := <-opened:
				assert.NotNil(t, err)
			case <-time.After(time.Second):
				t.Fatal("expected the circuit to open")
			}

			// the circuit now fails fast without reaching the server
			before := calls.Load()
			_, err := c.Get(srv.URL)
			assert.NotNil(t, err)
			assert.Equal(t, before, calls.Load())
		})
	})
}

func TestNotConnError(t *testing.T) {
	t.Run("will report false", func(t *testing.T) {
		t.Run("if the error is a network error", func(t *testing.T) {
			_, err := (&http.Client{Timeout: 100 * time.Millisecond}).Get("http://127.0.0.1:1")
			require.NotNil(t, err)
			assert.False(t, NotConnError(err))
		})
	})

	t.Run("will report true", func(t *testing.T) {
		t.Run("if the error is unrelated to the network", func(t *testing.T) {
			assert.True(t, NotConnError(assert.AnError))
		})
	})
}
