// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package function adapts a bootstrapped application into a handler a
// serverless host invokes per request. Exporting is side effect free:
// no socket is bound and no initialization runs until the host
// delivers the first request.
package function

import (
	"net/http"
	"sync/atomic"

	"github.com/z5labs/slipway"
	"github.com/z5labs/slipway/observe"
)

// Export returns the [http.Handler] a serverless host should invoke.
// Each invocation lazily ensures the application is wired, then
// dispatches through the same application handle a bound listener
// would use.
func Export(b *slipway.Bootstrap) http.Handler {
	return b.Handler()
}

var defaultHandler atomic.Pointer[http.Handler]

// SetDefault registers the bootstrap behind the package-level
// [Handler] entry point.
func SetDefault(b *slipway.Bootstrap) {
	h := Export(b)
	defaultHandler.Store(&h)
}

// Handler is the package-level entry point for hosts which resolve the
// function by symbol, in the style of func-as-a-file platforms. It
// dispatches through the bootstrap registered with [SetDefault] and
// answers 500 when none is registered.
func Handler(w http.ResponseWriter, r *http.Request) {
	h := defaultHandler.Load()
	if h == nil {
		observe.WriteMessage(w, http.StatusInternalServerError, "no application registered")
		return
	}
	(*h).ServeHTTP(w, r)
}
