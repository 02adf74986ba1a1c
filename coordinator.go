// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package slipway

import (
	"context"
	"fmt"
	"sync"

	"github.com/z5labs/slipway/internal/try"
)

// State enumerates the initialization lifecycle. The state is stored
// only inside the [Coordinator]; other components interact with it
// solely through [Coordinator.Ensure] and [Coordinator.Ready].
type State int

const (
	// StateNotStarted means wiring has not begun, or a previous
	// attempt failed and may be retried.
	StateNotStarted State = iota
	// StateInProgress means one caller is running the wiring sequence
	// and everyone else is waiting on its completion.
	StateInProgress
	// StateComplete means the application handle is fully wired and
	// dispatch-only.
	StateComplete
)

// String implements the [fmt.Stringer] interface.
func (s State) String() string {
	switch s {
	case StateInProgress:
		return "in-progress"
	case StateComplete:
		return "complete"
	default:
		return "not-started"
	}
}

// WireError occurs when the initialization wiring sequence fails. The
// same fault is delivered to every caller waiting on the attempt.
type WireError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e WireError) Error() string {
	return fmt.Sprintf("slipway: failed to wire application: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e WireError) Unwrap() error {
	return e.Cause
}

// CoordinatorOption configures a [Coordinator].
type CoordinatorOption func(*Coordinator)

// OnComplete registers a hook invoked once when the coordinator first
// reaches [StateComplete]. It must be fast; it runs inside the
// coordinator's critical section.
func OnComplete(hook func()) CoordinatorOption {
	return func(c *Coordinator) {
		c.onComplete = hook
	}
}

// wireAttempt is the shared completion signal for a single run of the
// wiring sequence. Waiters read err only after done is closed.
type wireAttempt struct {
	done chan struct{}
	err  error
}

// Coordinator guards the one-time wiring of the application handle.
// The first caller to observe [StateNotStarted] runs the wiring
// sequence; every caller arriving during [StateInProgress] waits on
// the same completion signal instead of re-triggering it. On failure
// the fault is delivered to all waiters and the state returns to
// [StateNotStarted] so a later call may retry.
type Coordinator struct {
	wire       func(context.Context) error
	onComplete func()

	mu      sync.Mutex
	state   State
	attempt *wireAttempt
}

// NewCoordinator returns a [Coordinator] in [StateNotStarted] over the
// given wiring function.
func NewCoordinator(wire func(context.Context) error, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		wire: wire,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ready reports whether the coordinator has reached [StateComplete].
func (c *Coordinator) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateComplete
}

// Ensure guarantees the wiring sequence has run to completion, running
// it if necessary. It is safe to call from any number of goroutines:
// the sequence executes at most once per attempt, and concurrent
// callers share its outcome. A caller whose ctx is done may stop
// waiting, but the wiring itself is not cancelable; it simply delays
// readiness.
func (c *Coordinator) Ensure(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateComplete:
		c.mu.Unlock()
		return nil
	case StateInProgress:
		att := c.attempt
		c.mu.Unlock()

		select {
		case <-att.done:
			return att.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	att := &wireAttempt{
		done: make(chan struct{}),
	}
	c.state = StateInProgress
	c.attempt = att
	c.mu.Unlock()

	err := c.runWire(ctx)

	c.mu.Lock()
	if err != nil {
		att.err = WireError{Cause: err}
		c.state = StateNotStarted
	} else {
		c.state = StateComplete
		if c.onComplete != nil {
			c.onComplete()
		}
	}
	c.attempt = nil
	c.mu.Unlock()

	close(att.done)
	return att.err
}

// runWire shields the wiring sequence from the triggering request's
// cancellation and recovers any panic into a returned error.
func (c *Coordinator) runWire(ctx context.Context) (err error) {
	defer try.Recover(&err)
	return c.wire(context.WithoutCancel(ctx))
}
