// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package content selects the catch-all handler which serves every
// request not matched by a registered route: prebuilt static assets in
// production, a reverse proxy to the frontend dev server in
// development, and a minimal placeholder page when neither is
// available.
package content

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/z5labs/slipway/internal/noop"
)

// Kind identifies which strategy was mounted as the catch-all.
type Kind int

const (
	// KindPlaceholder serves the embedded placeholder page.
	KindPlaceholder Kind = iota
	// KindStatic serves prebuilt assets from a filesystem directory.
	KindStatic
	// KindDevProxy proxies to a frontend dev server.
	KindDevProxy
)

// String implements the [fmt.Stringer] interface.
func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindDevProxy:
		return "devproxy"
	default:
		return "placeholder"
	}
}

// Strategy is a mounted catch-all handler.
type Strategy interface {
	http.Handler

	// Kind identifies the mounted strategy.
	Kind() Kind
}

// Config drives strategy selection. It is derived from the process-wide
// runtime configuration.
type Config struct {
	// Production selects static asset serving over the dev proxy.
	Production bool

	// StaticDir is the prebuilt asset directory served in production.
	StaticDir string

	// DevServerURL is the origin of the frontend dev server proxied to
	// in development.
	DevServerURL string

	// SkipDevProxy forces the placeholder page in development.
	SkipDevProxy bool

	// Logger used to report degradations. Defaults to a silent logger.
	Logger *slog.Logger
}

// Select returns exactly one catch-all strategy for the given config.
// It never fails: any fault mounting the preferred strategy is logged
// and degrades to the placeholder page.
func Select(ctx context.Context, cfg Config) Strategy {
	log := cfg.Logger
	if log == nil {
		log = slog.New(noop.LogHandler{})
	}

	if cfg.Production {
		static, err := NewStatic(cfg.StaticDir, log)
		if err == nil {
			return static
		}
		log.LogAttrs(ctx, slog.LevelWarn, "static asset directory unavailable, serving placeholder page",
			slog.String("dir", cfg.StaticDir),
			slog.Any("error", err),
		)
		return NewPlaceholder()
	}

	if cfg.SkipDevProxy {
		return NewPlaceholder()
	}

	proxy, err := NewDevProxy(ctx, cfg.DevServerURL, log)
	if err == nil {
		return proxy
	}
	log.LogAttrs(ctx, slog.LevelWarn, "dev server unreachable, serving placeholder page",
		slog.String("url", cfg.DevServerURL),
		slog.Any("error", err),
	)
	return NewPlaceholder()
}
