// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package observe

import "net/http"

const (
	defaultFrameOptions       = "DENY"
	defaultReferrerPolicy     = "no-referrer"
	defaultContentTypeOptions = "nosniff"
)

// SecurityConfig controls the response headers which harden the
// application against clickjacking, MIME sniffing and referrer leakage.
// Zero-valued fields fall back to safe defaults.
type SecurityConfig struct {
	FrameOptions       string
	ReferrerPolicy     string
	ContentTypeOptions string
}

func (cfg SecurityConfig) withDefaults() SecurityConfig {
	if cfg.FrameOptions == "" {
		cfg.FrameOptions = defaultFrameOptions
	}
	if cfg.ReferrerPolicy == "" {
		cfg.ReferrerPolicy = defaultReferrerPolicy
	}
	if cfg.ContentTypeOptions == "" {
		cfg.ContentTypeOptions = defaultContentTypeOptions
	}
	return cfg
}

// SecurityHeaders returns middleware which injects the configured
// security headers on every response.
func SecurityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	effective := cfg.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", effective.FrameOptions)
			w.Header().Set("X-Content-Type-Options", effective.ContentTypeOptions)
			w.Header().Set("Referrer-Policy", effective.ReferrerPolicy)

			next.ServeHTTP(w, r)
		})
	}
}
