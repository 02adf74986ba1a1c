// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpserver provides the standalone transport: a HTTP server
// which binds a socket, serves the application handle and shuts down
// gracefully when its context is canceled.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/slipway/health"
	"github.com/z5labs/slipway/internal/noop"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// ListenError occurs when the listener can not be bound to its
// configured address.
type ListenError struct {
	Addr  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ListenError) Error() string {
	return fmt.Sprintf("httpserver: failed to listen on %s: %s", e.Addr, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ListenError) Unwrap() error {
	return e.Cause
}

type runtimeOptions struct {
	host            string
	port            uint
	logHandler      slog.Handler
	readiness       *health.Readiness
	liveness        *health.Liveness
	shutdownTimeout time.Duration
}

// RuntimeOption configures a [Runtime].
type RuntimeOption func(*runtimeOptions)

// ListenOn configures the address the server binds on.
//
// Default is 0.0.0.0:5000.
func ListenOn(host string, port uint) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.host = host
		ro.port = port
	}
}

// LogHandler configures the handler the server logs with.
func LogHandler(h slog.Handler) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.logHandler = h
	}
}

// Readiness configures the signal served at /health/readiness.
func Readiness(r *health.Readiness) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.readiness = r
	}
}

// Liveness configures the signal served at /health/liveness.
func Liveness(l *health.Liveness) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.liveness = l
	}
}

// ShutdownTimeout bounds how long in-flight requests may take to drain
// after the context is canceled.
//
// Default is 30s.
func ShutdownTimeout(d time.Duration) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.shutdownTimeout = d
	}
}

// Runtime serves the given handler over a bound socket.
type Runtime struct {
	addr   string
	listen func(network, addr string) (net.Listener, error)

	log *slog.Logger
	h   http.Handler

	shutdownTimeout time.Duration

	liveness  *health.Liveness
	readiness *health.Readiness
}

// NewRuntime returns a fully initialized [Runtime] serving h.
func NewRuntime(h http.Handler, opts ...RuntimeOption) *Runtime {
	ros := &runtimeOptions{
		host:            "0.0.0.0",
		port:            5000,
		logHandler:      noop.LogHandler{},
		readiness:       &health.Readiness{},
		liveness:        &health.Liveness{},
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(ros)
	}

	mux := http.NewServeMux()
	mux.Handle("/health/liveness", otelhttp.WithRouteTag("/health/liveness", ros.liveness))
	mux.Handle("/health/readiness", otelhttp.WithRouteTag("/health/readiness", ros.readiness))
	mux.Handle("/", h)

	return &Runtime{
		addr:            fmt.Sprintf("%s:%d", ros.host, ros.port),
		listen:          net.Listen,
		log:             slog.New(ros.logHandler),
		h:               mux,
		shutdownTimeout: ros.shutdownTimeout,
		liveness:        ros.liveness,
		readiness:       ros.readiness,
	}
}

// Run implements the slipway.Runtime interface. It blocks until ctx is
// canceled or the server fails.
func (rt *Runtime) Run(ctx context.Context) error {
	ls, err := rt.listen("tcp", rt.addr)
	if err != nil {
		rt.log.Error("failed to listen for connections", slog.String("addr", rt.addr), slog.Any("error", err))
		return ListenError{Addr: rt.addr, Cause: err}
	}

	s := &http.Server{
		Handler: otelhttp.NewHandler(
			rt.h,
			"server",
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()

		sctx, cancel := context.WithTimeout(context.Background(), rt.shutdownTimeout)
		defer cancel()
		defer rt.log.Info("shut down service")

		rt.liveness.Dead()
		rt.log.Info("shutting down service")
		return s.Shutdown(sctx)
	})
	g.Go(func() error {
		rt.liveness.Alive()
		rt.log.Info("started service", slog.String("addr", rt.addr))
		return s.Serve(ls)
	})

	err = g.Wait()
	if err == nil || err == http.ErrServerClosed {
		return nil
	}
	rt.log.Error("service encountered unexpected error", slog.Any("error", err))
	return err
}
