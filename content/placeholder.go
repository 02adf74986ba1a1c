// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package content

import (
	_ "embed"
	"net/http"
)

//go:embed placeholder.html
var placeholderPage []byte

// Placeholder serves a minimal static HTML page for every request. It
// is the strategy of last resort: mounted when no assets are built and
// no dev server is reachable, so non-API routes see a page instead of
// an error.
type Placeholder struct{}

// NewPlaceholder returns the placeholder strategy.
func NewPlaceholder() *Placeholder {
	return &Placeholder{}
}

// Kind implements the [Strategy] interface.
func (p *Placeholder) Kind() Kind {
	return KindPlaceholder
}

// ServeHTTP implements the http.Handler interface.
func (p *Placeholder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(placeholderPage)
}
