// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package observe

import (
	"errors"
	"log/slog"
	"net/http"
)

// statusError is any error carrying an explicit HTTP status code.
type statusError interface {
	error
	HTTPStatus() int
}

// Recover returns the terminal error handling middleware. It catches
// panics escaping any handler beneath it and maps them to a JSON error
// response: the status comes from the panic value's HTTPStatus method
// when present, otherwise 500. Full detail is logged server-side only;
// the client sees a generic message.
func Recover(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}

				status := http.StatusInternalServerError
				msg := "Internal Server Error"

				err, ok := v.(error)
				if !ok {
					err = PanicValueError{Value: v}
				}

				var serr statusError
				if errors.As(err, &serr) {
					status = serr.HTTPStatus()
					msg = http.StatusText(status)
				}

				log.LogAttrs(r.Context(), slog.LevelError, "request handler panicked",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("error", err),
				)

				WriteMessage(w, status, msg)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// PanicValueError wraps a non-error value recovered from a panic.
type PanicValueError struct {
	Value any
}

// Error implements the [builtin.error] interface.
func (e PanicValueError) Error() string {
	return "panicked with non-error value"
}
