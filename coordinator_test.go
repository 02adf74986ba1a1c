// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package slipway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/z5labs/slipway/internal/try"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_Ensure(t *testing.T) {
	t.Run("will run the wiring exactly once", func(t *testing.T) {
		t.Run("if called concurrently by many goroutines", func(t *testing.T) {
			var wired atomic.Int64
			c := NewCoordinator(func(ctx context.Context) error {
				wired.Add(1)
				time.Sleep(10 * time.Millisecond)
				return nil
			})

			n := 50
			errs := make([]error, n)

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = c.Ensure(context.Background())
				}(i)
			}
			wg.Wait()

			assert.Equal(t, int64(1), wired.Load())
			for _, err := range errs {
				assert.Nil(t, err)
			}
			assert.True(t, c.Ready())
		})

		t.Run("if called again after completing", func(t *testing.T) {
			var wired atomic.Int64
			c := NewCoordinator(func(ctx context.Context) error {
				wired.Add(1)
				return nil
			})

			require.Nil(t, c.Ensure(context.Background()))
			require.Nil(t, c.Ensure(context.Background()))
			assert.Equal(t, int64(1), wired.Load())
		})
	})

	t.Run("will deliver the same fault to every waiter", func(t *testing.T) {
		t.Run("if the wiring fails", func(t *testing.T) {
			wireErr := errors.New("route registration failed")

			started := make(chan struct{})
			release := make(chan struct{})
			c := NewCoordinator(func(ctx context.Context) error {
				close(started)
				<-release
				return wireErr
			})

			go func() {
				_ = c.Ensure(context.Background())
			}()
			<-started

			n := 10
			errs := make([]error, n)

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = c.Ensure(context.Background())
				}(i)
			}

			// give the waiters a moment to reach the attempt
			time.Sleep(10 * time.Millisecond)
			close(release)
			wg.Wait()

			for _, err := range errs {
				var werr WireError
				if !assert.ErrorAs(t, err, &werr) {
					return
				}
				assert.Equal(t, wireErr, werr.Unwrap())
			}
			assert.False(t, c.Ready())
		})
	})

	t.Run("will allow a later call to retry", func(t *testing.T) {
		t.Run("if a previous attempt failed", func(t *testing.T) {
			var attempts atomic.Int64
			c := NewCoordinator(func(ctx context.Context) error {
				if attempts.Add(1) == 1 {
					return errors.New("transient failure")
				}
				return nil
			})

			err := c.Ensure(context.Background())
			require.NotNil(t, err)
			assert.False(t, c.Ready())

			err = c.Ensure(context.Background())
			require.Nil(t, err)
			assert.True(t, c.Ready())
			assert.Equal(t, int64(2), attempts.Load())
		})
	})

	t.Run("will recover a panic into a returned error", func(t *testing.T) {
		t.Run("if the wiring panics", func(t *testing.T) {
			c := NewCoordinator(func(ctx context.Context) error {
				panic("boom")
			})

			err := c.Ensure(context.Background())

			var werr WireError
			require.ErrorAs(t, err, &werr)

			var perr try.PanicError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "boom", perr.Value)
			assert.False(t, c.Ready())
		})
	})

	t.Run("will stop waiting", func(t *testing.T) {
		t.Run("if the waiter's context is canceled", func(t *testing.T) {
			started := make(chan struct{})
			release := make(chan struct{})
			defer close(release)

			c := NewCoordinator(func(ctx context.Context) error {
				close(started)
				<-release
				return nil
			})

			go func() {
				_ = c.Ensure(context.Background())
			}()
			<-started

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := c.Ensure(ctx)
			assert.ErrorIs(t, err, context.Canceled)
		})
	})

	t.Run("will not cancel the wiring", func(t *testing.T) {
		t.Run("if the triggering caller's context is canceled", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			c := NewCoordinator(func(ctx context.Context) error {
				return ctx.Err()
			})

			err := c.Ensure(ctx)
			assert.Nil(t, err)
			assert.True(t, c.Ready())
		})
	})

	t.Run("will invoke the completion hook once", func(t *testing.T) {
		t.Run("if wiring eventually succeeds", func(t *testing.T) {
			var completed atomic.Int64
			var attempts atomic.Int64
			c := NewCoordinator(
				func(ctx context.Context) error {
					if attempts.Add(1) == 1 {
						return errors.New("transient failure")
					}
					return nil
				},
				OnComplete(func() {
					completed.Add(1)
				}),
			)

			_ = c.Ensure(context.Background())
			require.Nil(t, c.Ensure(context.Background()))
			require.Nil(t, c.Ensure(context.Background()))
			assert.Equal(t, int64(1), completed.Load())
		})
	})
}

func TestState_String(t *testing.T) {
	t.Run("will name every state", func(t *testing.T) {
		assert.Equal(t, "not-started", StateNotStarted.String())
		assert.Equal(t, "in-progress", StateInProgress.String())
		assert.Equal(t, "complete", StateComplete.String())
	})
}
