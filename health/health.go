// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health provides readiness and liveness signals which can be
// served over HTTP.
package health

import (
	"context"
	"net/http"
	"sync"
)

// Metric represents anything that can report its health status.
type Metric interface {
	Healthy(context.Context) bool
}

// Readiness signals whether the application has finished wiring itself
// and is able to serve traffic. The zero value is not ready.
type Readiness struct {
	mu    sync.Mutex
	ready bool
}

// Ready marks the application as ready to serve traffic.
func (r *Readiness) Ready() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = true
}

// NotReady marks the application as unable to serve traffic.
func (r *Readiness) NotReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = false
}

// Healthy implements the Metric interface.
func (r *Readiness) Healthy(_ context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// ServeHTTP implements the http.Handler interface.
func (r *Readiness) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	serveMetric(r, w, req)
}

// Liveness signals whether the process is alive at all. The zero value
// is not alive.
type Liveness struct {
	mu    sync.Mutex
	alive bool
}

// Alive marks the process as alive.
func (l *Liveness) Alive() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alive = true
}

// Dead marks the process as no longer alive.
func (l *Liveness) Dead() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alive = false
}

// Healthy implements the Metric interface.
func (l *Liveness) Healthy(_ context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alive
}

// ServeHTTP implements the http.Handler interface.
func (l *Liveness) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	serveMetric(l, w, req)
}

func serveMetric(m Metric, w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !m.Healthy(req.Context()) {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
