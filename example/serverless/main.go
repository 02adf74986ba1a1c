// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Demonstrates exporting the application for a serverless host: the
// handler is registered at startup and the process stays alive without
// binding a socket of its own.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/z5labs/slipway"
	"github.com/z5labs/slipway/config"
	"github.com/z5labs/slipway/function"
)

func registerRoutes(app *slipway.App) error {
	return app.HandleFunc("/api/time", func(w http.ResponseWriter, r *http.Request) error {
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"now":"` + time.Now().UTC().Format(time.RFC3339) + `"}`))
		return err
	})
}

func main() {
	settings, err := slipway.ReadSettings(config.FromEnviron([]string{
		"SLIPWAY_SERVERLESS=true",
	}))
	if err != nil {
		slog.Error("failed to read settings", slog.Any("error", err))
		os.Exit(1)
	}

	b, err := slipway.New(
		slipway.Name("serverless"),
		slipway.WithSettings(settings),
		slipway.LogHandler(slog.NewJSONHandler(os.Stderr, nil)),
		slipway.RoutesFunc(registerRoutes),
	)
	if err != nil {
		slog.Error("failed to bootstrap application", slog.Any("error", err))
		os.Exit(1)
	}

	// The host invokes function.Handler per request.
	function.SetDefault(b)

	err = b.Run()
	if err != nil {
		slog.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
}
