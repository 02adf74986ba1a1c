// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package slipway

import (
	"fmt"
	"strings"

	"github.com/z5labs/slipway/config"
)

// Host is the bind address used by the standalone listener.
const Host = "0.0.0.0"

// DefaultPort is the listen port used when PORT is unset.
const DefaultPort = 5000

const (
	defaultEnv          = "development"
	defaultStaticDir    = "dist/public"
	defaultDevServerURL = "http://127.0.0.1:5173"
)

// SettingsError occurs when the runtime configuration can not be read
// from its sources.
type SettingsError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e SettingsError) Error() string {
	return fmt.Sprintf("slipway: failed to read settings: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e SettingsError) Unwrap() error {
	return e.Cause
}

// Settings is the process-wide runtime configuration. It is read once
// at startup and immutable for the process lifetime.
type Settings struct {
	// Serverless marks the process as deployed behind a serverless
	// host which invokes the exported handler per request.
	Serverless bool `config:"SLIPWAY_SERVERLESS"`

	// Standalone forces the socket listener even when Serverless is
	// set, for local testing of a serverless build.
	Standalone bool `config:"SLIPWAY_STANDALONE"`

	// Env is "production" or "development".
	Env string `config:"SLIPWAY_ENV"`

	// Port the standalone listener binds on.
	Port uint `config:"PORT"`

	// SkipDevProxy forces the placeholder page instead of proxying to
	// the frontend dev server in development.
	SkipDevProxy bool `config:"SLIPWAY_SKIP_DEVPROXY"`

	// StaticDir is the prebuilt asset directory served in production.
	StaticDir string `config:"SLIPWAY_STATIC_DIR"`

	// DevServerURL is the frontend dev server origin proxied to in
	// development.
	DevServerURL string `config:"SLIPWAY_DEVSERVER_URL"`
}

// ReadSettings reads the runtime configuration from the given sources,
// applying defaults for anything unset. With no sources it reads the
// process environment.
func ReadSettings(srcs ...config.Source) (Settings, error) {
	if len(srcs) == 0 {
		srcs = []config.Source{config.FromEnv()}
	}

	s := Settings{
		Env:          defaultEnv,
		Port:         DefaultPort,
		StaticDir:    defaultStaticDir,
		DevServerURL: defaultDevServerURL,
	}

	m, err := config.Read(srcs...)
	if err != nil {
		return s, SettingsError{Cause: err}
	}
	err = m.Unmarshal(&s)
	if err != nil {
		return s, SettingsError{Cause: err}
	}
	return s, nil
}

// Production reports whether the process runs against prebuilt assets.
func (s Settings) Production() bool {
	return strings.EqualFold(s.Env, "production")
}

// ListensStandalone reports whether the process binds a socket: the
// serverless flag suppresses the listener unless the standalone
// override forces it back on.
func (s Settings) ListensStandalone() bool {
	return s.Standalone || !s.Serverless
}
