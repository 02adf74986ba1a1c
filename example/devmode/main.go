// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Demonstrates development mode: unmatched requests are proxied to a
// frontend dev server so hot module reloading keeps working while the
// backend owns the port. Start the dev server first, or set
// SLIPWAY_SKIP_DEVPROXY=true to serve the placeholder page instead.
package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/z5labs/slipway"
)

func registerRoutes(app *slipway.App) error {
	err := app.HandleFunc("/api/ping", func(w http.ResponseWriter, r *http.Request) error {
		w.Header().Set("Content-Type", "application/json")
		_, werr := w.Write([]byte(`{"ok":true}`))
		return werr
	})
	if err != nil {
		return err
	}
	return app.HandleFunc("/api/fail", func(w http.ResponseWriter, r *http.Request) error {
		return slipway.Error{Status: http.StatusBadRequest, Message: "always fails"}
	})
}

func main() {
	b, err := slipway.New(
		slipway.Name("devmode"),
		slipway.LogHandler(slog.NewTextHandler(os.Stderr, nil)),
		slipway.RoutesFunc(registerRoutes),
	)
	if err != nil {
		slog.Error("failed to bootstrap application", slog.Any("error", err))
		os.Exit(1)
	}

	err = b.Run()
	if err != nil {
		slog.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
}
