// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package content

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/z5labs/slipway/httpclient"
	"github.com/z5labs/slipway/observe"
)

// DevServerUnreachableError occurs when the frontend dev server does
// not answer the readiness probe before the proxy is mounted.
type DevServerUnreachableError struct {
	URL   string
	Cause error
}

// Error implements the error interface.
func (e DevServerUnreachableError) Error() string {
	return fmt.Sprintf("content: dev server at %s is unreachable: %s", e.URL, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Unwrap].
func (e DevServerUnreachableError) Unwrap() error {
	return e.Cause
}

// FatalError occurs when the dev proxy circuit opens, meaning the dev
// server stopped answering mid-session. It is reported over
// [DevProxy.Fatal] instead of being returned to any request.
type FatalError struct {
	Cause error
}

// Error implements the error interface.
func (e FatalError) Error() string {
	return fmt.Sprintf("content: dev proxy failed: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Unwrap].
func (e FatalError) Unwrap() error {
	return e.Cause
}

// DevProxy forwards unmatched requests to the frontend dev server so
// hot module reloading keeps working while the backend owns the port.
type DevProxy struct {
	proxy *httputil.ReverseProxy

	fatalOnce sync.Once
	fatal     chan error
}

// NewDevProxy probes the dev server at rawURL and, once it answers,
// returns a reverse proxy pointed at it. The probe retries briefly to
// ride out the dev server still starting up.
func NewDevProxy(ctx context.Context, rawURL string, log *slog.Logger) (*DevProxy, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, DevServerUnreachableError{URL: rawURL, Cause: err}
	}

	err = probeDevServer(ctx, target)
	if err != nil {
		return nil, DevServerUnreachableError{URL: rawURL, Cause: err}
	}

	p := &DevProxy{
		fatal: make(chan error, 1),
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = httpclient.RoundTripperWith(
		http.DefaultTransport,
		httpclient.CircuitBreaker(
			httpclient.CircuitName("devproxy"),
			httpclient.CircuitOnOpen(func(err error) {
				p.reportFatal(FatalError{Cause: err})
			}),
		),
	)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.LogAttrs(r.Context(), slog.LevelError, "failed to proxy request to dev server",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		observe.WriteMessage(w, http.StatusBadGateway, "dev server unavailable")
	}
	p.proxy = proxy

	return p, nil
}

func probeDevServer(ctx context.Context, target *url.URL) error {
	client := httpclient.NewClient(
		httpclient.ClientTimeout(2*time.Second),
		httpclient.RetryRequests(
			httpclient.MaxAttempts(3),
			httpclient.MinWaitDuration(100*time.Millisecond),
			httpclient.MaxWaitDuration(time.Second),
		),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// ServeHTTP implements the [http.Handler] interface.
func (p *DevProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.proxy.ServeHTTP(w, r)
}

// Kind implements the [Strategy] interface.
func (p *DevProxy) Kind() Kind {
	return KindDevProxy
}

// Fatal delivers at most one error describing a dev proxy failure that
// the process cannot recover from. Whether to terminate is the
// caller's decision.
func (p *DevProxy) Fatal() <-chan error {
	return p.fatal
}

func (p *DevProxy) reportFatal(err error) {
	p.fatalOnce.Do(func() {
		p.fatal <- err
	})
}
