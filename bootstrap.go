// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package slipway

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/z5labs/slipway/content"
	"github.com/z5labs/slipway/health"
	"github.com/z5labs/slipway/httpserver"
	"github.com/z5labs/slipway/internal/noop"
	"github.com/z5labs/slipway/internal/try"
	"github.com/z5labs/slipway/lifecycle"
	"github.com/z5labs/slipway/observe"
	"github.com/z5labs/slipway/otelconfig"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

type bootstrapOptions struct {
	name       string
	settings   *Settings
	routes     []RouteRegistrar
	logHandler slog.Handler
	tracerInit otelconfig.Initializer
	postRun    []lifecycle.Hook
}

// Option configures a [Bootstrap].
type Option func(*bootstrapOptions)

// Name configures the name of the application.
func Name(name string) Option {
	return func(bo *bootstrapOptions) {
		bo.name = name
	}
}

// WithSettings supplies the runtime configuration directly instead of
// reading it from the process environment.
func WithSettings(s Settings) Option {
	return func(bo *bootstrapOptions) {
		bo.settings = &s
	}
}

// Routes registers route registrars. They run exactly once, inside the
// initialization critical section, in registration order.
func Routes(rs ...RouteRegistrar) Option {
	return func(bo *bootstrapOptions) {
		bo.routes = append(bo.routes, rs...)
	}
}

// RoutesFunc registers the given function as a [RouteRegistrar].
func RoutesFunc(f func(*App) error) Option {
	return Routes(RouteRegistrarFunc(f))
}

// LogHandler configures the handler the bootstrap and its middleware
// log with.
func LogHandler(h slog.Handler) Option {
	return func(bo *bootstrapOptions) {
		bo.logHandler = h
	}
}

// InitTracerProvider configures how the global tracer provider is
// initialized before serving. Its shutdown is handled automatically
// after the run completes.
func InitTracerProvider(init otelconfig.Initializer) Option {
	return func(bo *bootstrapOptions) {
		bo.tracerInit = init
	}
}

// OnPostRun registers hooks which run after serving completes,
// regardless of whether it returned an error.
func OnPostRun(hooks ...lifecycle.Hook) Option {
	return func(bo *bootstrapOptions) {
		bo.postRun = append(bo.postRun, hooks...)
	}
}

// Bootstrap owns the application handle and its one-time wiring, and
// selects the transport the process serves over: a bound listener, an
// exported serverless handler, or both.
type Bootstrap struct {
	name     string
	log      *slog.Logger
	handler  slog.Handler
	settings Settings

	app    *App
	coord  *Coordinator
	routes []RouteRegistrar

	readiness *health.Readiness
	liveness  *health.Liveness

	// wired is closed when initialization first reaches completion,
	// regardless of whether that happens at startup or only on a
	// later request's retry.
	wired chan struct{}

	strategyMu sync.Mutex
	strategy   content.Strategy

	newRuntime func() Runtime

	tracerInit otelconfig.Initializer
	postRun    []lifecycle.Hook
}

// New reads the runtime configuration, constructs the application
// handle and attaches the per-request middleware. No routes are
// registered and no content strategy is mounted until the first
// [Bootstrap.Ensure].
func New(opts ...Option) (*Bootstrap, error) {
	bo := &bootstrapOptions{
		logHandler: noop.LogHandler{},
		tracerInit: otelconfig.Noop,
	}
	if len(os.Args) > 0 {
		bo.name = os.Args[0]
	}
	for _, opt := range opts {
		opt(bo)
	}

	settings := Settings{}
	if bo.settings != nil {
		settings = *bo.settings
	} else {
		var err error
		settings, err = ReadSettings()
		if err != nil {
			return nil, err
		}
	}

	log := slog.New(bo.logHandler)

	app := NewApp(log)
	err := app.Use(
		observe.RequestID(),
		observe.Logger(log),
		observe.SecurityHeaders(observe.SecurityConfig{}),
	)
	if err != nil {
		return nil, err
	}

	b := &Bootstrap{
		name:       bo.name,
		log:        log,
		handler:    bo.logHandler,
		settings:   settings,
		app:        app,
		routes:     bo.routes,
		readiness:  &health.Readiness{},
		liveness:   &health.Liveness{},
		wired:      make(chan struct{}),
		tracerInit: bo.tracerInit,
		postRun:    bo.postRun,
	}
	b.coord = NewCoordinator(b.wire, OnComplete(b.onWired))
	b.newRuntime = b.buildRuntime
	return b, nil
}

func (b *Bootstrap) onWired() {
	b.readiness.Ready()
	close(b.wired)
}

// wire is the one-time initialization sequence: register routes, mount
// exactly one content strategy as the catch-all, then mount the
// terminal error handler so it observes faults from everything
// registered before it. A failed attempt rolls the application handle
// back to its checkpoint so a later retry starts clean.
func (b *Bootstrap) wire(ctx context.Context) (err error) {
	cp := b.app.checkpoint()
	defer func() {
		if err != nil {
			b.app.rollback(cp)
		}
	}()
	defer try.Recover(&err)

	for _, r := range b.routes {
		err := r.RegisterRoutes(b.app)
		if err != nil {
			return err
		}
	}

	strategy := content.Select(ctx, content.Config{
		Production:   b.settings.Production(),
		StaticDir:    b.settings.StaticDir,
		DevServerURL: b.settings.DevServerURL,
		SkipDevProxy: b.settings.SkipDevProxy,
		Logger:       b.log,
	})
	err = b.app.SetCatchAll(strategy)
	if err != nil {
		return err
	}
	b.setStrategy(strategy)
	b.log.LogAttrs(ctx, slog.LevelInfo, "mounted content strategy", slog.String("strategy", strategy.Kind().String()))

	err = b.app.Use(observe.Recover(b.log))
	if err != nil {
		return err
	}
	return b.app.seal()
}

// Ensure guarantees the application handle is fully wired, wiring it
// if necessary. Safe to call from any number of goroutines.
func (b *Bootstrap) Ensure(ctx context.Context) error {
	return b.coord.Ensure(ctx)
}

// Ready reports whether initialization has completed.
func (b *Bootstrap) Ready() bool {
	return b.coord.Ready()
}

// App returns the application handle.
func (b *Bootstrap) App() *App {
	return b.app
}

// Settings returns the runtime configuration the bootstrap was
// constructed with.
func (b *Bootstrap) Settings() Settings {
	return b.settings
}

// Handler returns an [http.Handler] which gates every dispatch behind
// [Bootstrap.Ensure]. A failed initialization answers 500 with a
// generic JSON body; the fault itself only reaches the server-side log.
func (b *Bootstrap) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := b.Ensure(r.Context())
		if err != nil {
			b.log.LogAttrs(r.Context(), slog.LevelError, "failed to initialize application",
				slog.Any("error", err),
			)
			observe.WriteMessage(w, http.StatusInternalServerError, "failed to initialize application")
			return
		}
		b.app.ServeHTTP(w, r)
	})
}

// Run executes the application until an OS interrupt arrives or the
// transport fails. In serverless mode without the standalone override
// no socket is bound; the process just stays alive for the host.
func (b *Bootstrap) Run(args ...string) error {
	cmd := b.buildCmd()
	cmd.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cmd.ExecuteContext(ctx)
}

func (b *Bootstrap) buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:           b.name,
		SilenceErrors: true,
		SilenceUsage:  true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			tp, err := b.tracerInit.Init()
			if err != nil {
				return err
			}
			otel.SetTracerProvider(tp)

			b.postRun = append(b.postRun, lifecycle.HookFunc(func(ctx context.Context) error {
				s, ok := tp.(interface {
					Shutdown(context.Context) error
				})
				if !ok {
					return nil
				}
				return s.Shutdown(ctx)
			}))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return b.run(cmd.Context())
		},
		PostRunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return lifecycle.MultiHook(b.postRun...).Run(ctx)
		},
	}
}

func (b *Bootstrap) run(ctx context.Context) error {
	// Warm the wiring so the first request does not pay for it. A
	// failure here is logged, not fatal: initialization is retryable
	// and the next request triggers another attempt.
	err := b.Ensure(ctx)
	if err != nil {
		b.log.LogAttrs(ctx, slog.LevelError, "failed to initialize application at startup, will retry on first request",
			slog.Any("error", err),
		)
	}

	if !b.settings.ListensStandalone() {
		b.liveness.Alive()
		b.log.LogAttrs(ctx, slog.LevelInfo, "running in serverless mode, not binding a listener")
		<-ctx.Done()
		return nil
	}

	rt := b.newRuntime()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.Run(gctx)
	})
	g.Go(func() error {
		return b.watchContentFaults(gctx)
	})
	return g.Wait()
}

func (b *Bootstrap) buildRuntime() Runtime {
	return httpserver.NewRuntime(
		b.Handler(),
		httpserver.ListenOn(Host, b.settings.Port),
		httpserver.LogHandler(b.handler),
		httpserver.Readiness(b.readiness),
		httpserver.Liveness(b.liveness),
	)
}

// watchContentFaults waits for initialization to complete, even when
// that only happens on a late request's retry, before sampling the
// mounted strategy for a fatal fault source. The dev proxy reports
// exactly one fatal fault class: its circuit opening. Terminating for
// it is decided here, at the top level, not inside the proxy.
func (b *Bootstrap) watchContentFaults(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-b.wired:
	}

	fatal := b.fatalContentFault()
	if fatal == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return nil
	case err := <-fatal:
		b.log.LogAttrs(ctx, slog.LevelError, "content strategy reported a fatal fault, shutting down",
			slog.Any("error", err),
		)
		return err
	}
}

func (b *Bootstrap) setStrategy(s content.Strategy) {
	b.strategyMu.Lock()
	defer b.strategyMu.Unlock()
	b.strategy = s
}

func (b *Bootstrap) fatalContentFault() <-chan error {
	b.strategyMu.Lock()
	defer b.strategyMu.Unlock()
	proxy, ok := b.strategy.(*content.DevProxy)
	if !ok {
		return nil
	}
	return proxy.Fatal()
}
