// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slipway bootstraps dual-mode HTTP applications: the same
// process can run as a long-lived standalone server or be exported as
// a serverless handler, with routing, content serving and error
// handling wired exactly once no matter how many concurrent requests
// race to trigger initialization.
package slipway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/z5labs/slipway/internal/noop"
	"github.com/z5labs/slipway/observe"
)

// Runtime represents a long-running transport, for example the
// standalone HTTP listener. OS interrupts and configuration are the
// bootstrap's responsibility; a Runtime purely serves.
type Runtime interface {
	Run(context.Context) error
}

// RuntimeFunc is a functional implementation of the [Runtime] interface.
type RuntimeFunc func(context.Context) error

// Run implements the [Runtime] interface.
func (f RuntimeFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Middleware wraps an [http.Handler] with additional behavior. The
// first middleware attached to an [App] is the outermost one.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] which reports request faults by
// returning them instead of writing its own error response. Returned
// errors are mapped to a generic JSON error body by the [App].
type Handler interface {
	ServeHTTP(http.ResponseWriter, *http.Request) error
}

// HandlerFunc is a functional implementation of the [Handler] interface.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// ServeHTTP implements the [Handler] interface.
func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// RouteRegistrar attaches route handlers to an [App]. It is invoked
// exactly once per process, inside the initialization critical
// section, regardless of caller concurrency.
type RouteRegistrar interface {
	RegisterRoutes(*App) error
}

// RouteRegistrarFunc is a functional implementation of the
// [RouteRegistrar] interface.
type RouteRegistrarFunc func(*App) error

// RegisterRoutes implements the [RouteRegistrar] interface.
func (f RouteRegistrarFunc) RegisterRoutes(app *App) error {
	return f(app)
}

// Error is a request fault carrying an explicit HTTP status. Handlers
// return it to control the status code of the generic JSON error
// response; any other error maps to 500.
type Error struct {
	Status  int
	Message string
	Cause   error
}

// Error implements the [builtin.error] interface.
func (e Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code the client should see.
func (e Error) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// SealedError occurs when attempting to mutate an [App] after its
// middleware chain has been composed.
type SealedError struct {
	Op string
}

// Error implements the [builtin.error] interface.
func (e SealedError) Error() string {
	return fmt.Sprintf("slipway: %s called after app was sealed", e.Op)
}

// CatchAllAlreadySetError occurs when a second catch-all handler is
// mounted. Exactly one catch-all is ever mounted per process.
type CatchAllAlreadySetError struct{}

// Error implements the [builtin.error] interface.
func (e CatchAllAlreadySetError) Error() string {
	return "slipway: a catch-all handler is already mounted"
}

// App is the application handle shared by every component: a single
// mutable router and middleware chain, exclusively mutated during the
// initialization window and dispatch-only afterward. Dispatch before
// sealing answers 503 so a request racing initialization never hits a
// half-wired chain.
//
// Mutations are staged: the router itself is only built when the App
// seals, so a failed initialization attempt can be rolled back to its
// checkpoint without leaving partially registered routes behind.
type App struct {
	log *slog.Logger

	mu         sync.Mutex
	routes     []route
	middleware []Middleware
	catchAll   http.Handler
	sealed     bool

	handler atomic.Pointer[http.Handler]
}

type route struct {
	pattern string
	handler http.Handler
}

// NewApp returns an unsealed [App]. A nil logger discards route fault
// detail.
func NewApp(log *slog.Logger) *App {
	if log == nil {
		log = slog.New(noop.LogHandler{})
	}
	return &App{
		log: log,
	}
}

// Handle registers a [Handler] for the given path pattern.
func (a *App) Handle(pattern string, h Handler) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return SealedError{Op: "Handle"}
	}
	a.routes = append(a.routes, route{
		pattern: pattern,
		handler: a.adapt(h),
	})
	return nil
}

// HandleFunc registers a handler function for the given path pattern.
func (a *App) HandleFunc(pattern string, f func(http.ResponseWriter, *http.Request) error) error {
	return a.Handle(pattern, HandlerFunc(f))
}

// Use appends middleware to the chain. The first middleware attached
// is the outermost; appending last therefore yields the innermost
// wrapper, which is how the terminal error handler observes faults
// from everything registered before it.
func (a *App) Use(mws ...Middleware) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return SealedError{Op: "Use"}
	}
	a.middleware = append(a.middleware, mws...)
	return nil
}

// SetCatchAll mounts the handler which answers every request not
// matched by a registered route. At most one catch-all may be mounted.
func (a *App) SetCatchAll(h http.Handler) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return SealedError{Op: "SetCatchAll"}
	}
	if a.catchAll != nil {
		return CatchAllAlreadySetError{}
	}
	a.catchAll = h
	return nil
}

// appCheckpoint captures the staged wiring state of an [App] so a
// failed initialization attempt can be rolled back.
type appCheckpoint struct {
	routes     int
	middleware int
	catchAll   http.Handler
}

func (a *App) checkpoint() appCheckpoint {
	a.mu.Lock()
	defer a.mu.Unlock()
	return appCheckpoint{
		routes:     len(a.routes),
		middleware: len(a.middleware),
		catchAll:   a.catchAll,
	}
}

// rollback discards everything staged after the checkpoint was taken.
// A sealed App is immutable and unaffected.
func (a *App) rollback(cp appCheckpoint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return
	}
	a.routes = a.routes[:cp.routes]
	a.middleware = a.middleware[:cp.middleware]
	a.catchAll = cp.catchAll
}

// seal builds the router from the staged routes, composes the
// middleware chain around it and publishes the result for dispatch.
// After sealing the App is immutable.
func (a *App) seal() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return SealedError{Op: "seal"}
	}

	mux := http.NewServeMux()
	for _, rt := range a.routes {
		mux.Handle(rt.pattern, rt.handler)
	}
	if a.catchAll != nil {
		mux.Handle("/", a.catchAll)
	}

	var h http.Handler = mux
	for i := len(a.middleware) - 1; i >= 0; i-- {
		h = a.middleware[i](h)
	}

	a.sealed = true
	a.handler.Store(&h)
	return nil
}

// ServeHTTP implements the [http.Handler] interface.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := a.handler.Load()
	if h == nil {
		observe.WriteMessage(w, http.StatusServiceUnavailable, "service is starting")
		return
	}
	(*h).ServeHTTP(w, r)
}

// adapt maps a returned request fault to the generic JSON error
// response. Full detail stays in the server-side log; the client only
// ever sees the status text.
func (a *App) adapt(h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h.ServeHTTP(w, r)
		if err == nil {
			return
		}

		status := http.StatusInternalServerError
		var herr Error
		if errors.As(err, &herr) {
			status = herr.HTTPStatus()
		}

		a.log.LogAttrs(r.Context(), slog.LevelError, "request handler failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Any("error", err),
		)

		observe.WriteMessage(w, status, http.StatusText(status))
	})
}
