// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/z5labs/slipway"
	"github.com/z5labs/slipway/otelconfig"
)

func registerRoutes(app *slipway.App) error {
	return app.HandleFunc("/api/ping", func(w http.ResponseWriter, r *http.Request) error {
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"ok":true}`))
		return err
	})
}

func main() {
	b, err := slipway.New(
		slipway.Name("standalone"),
		slipway.LogHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{AddSource: true})),
		slipway.InitTracerProvider(otelconfig.Local(
			otelconfig.LocalServiceName("standalone"),
		)),
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
