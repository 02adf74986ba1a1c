// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package observe

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type loggerOptions struct {
	apiPrefix   string
	maxSnapshot int
}

// LoggerOption configures the [Logger] middleware.
type LoggerOption func(*loggerOptions)

// APIPrefix sets the path prefix for which the JSON response body is
// captured and included in the log line.
//
// Default prefix is "/api".
func APIPrefix(prefix string) LoggerOption {
	return func(lo *loggerOptions) {
		lo.apiPrefix = prefix
	}
}

// MaxSnapshot caps the number of response body bytes captured per
// request. Bodies larger than the cap are truncated in the log line;
// the bytes sent to the client are unaffected.
//
// Default cap is 8 KiB.
func MaxSnapshot(n int) LoggerOption {
	return func(lo *loggerOptions) {
		lo.maxSnapshot = n
	}
}

// Logger returns middleware which observes every request/response pair
// and emits exactly one structured log line after the response
// finishes: method, path, status and elapsed milliseconds. Requests
// under the API prefix additionally carry a compact snapshot of their
// JSON response body. The middleware forwards all response bytes
// unmodified and retains nothing beyond the single log emission.
func Logger(log *slog.Logger, opts ...LoggerOption) func(http.Handler) http.Handler {
	lo := &loggerOptions{
		apiPrefix:   "/api",
		maxSnapshot: 8 << 10,
	}
	for _, opt := range opts {
		opt(lo)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &recorder{
				ResponseWriter: w,
				status:         http.StatusOK,
				capture:        strings.HasPrefix(r.URL.Path, lo.apiPrefix),
				max:            lo.maxSnapshot,
			}
			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			if id := RequestIDFromContext(r.Context()); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if rec.capture && rec.body.Len() > 0 {
				attrs = append(attrs, slog.String("body", snapshot(&rec.body, rec.truncated)))
			}
			log.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
		})
	}
}

func snapshot(body *bytes.Buffer, truncated bool) string {
	s := strings.TrimSpace(body.String())
	if truncated {
		s += "…"
	}
	return s
}

// recorder is a pass-through http.ResponseWriter proxy. It records the
// status code and, for API requests with a JSON content type, a bounded
// copy of the response body. All writes are forwarded unmodified.
type recorder struct {
	http.ResponseWriter

	status      int
	wroteHeader bool

	capture   bool
	max       int
	body      bytes.Buffer
	truncated bool
}

func (rec *recorder) WriteHeader(status int) {
	if !rec.wroteHeader {
		rec.status = status
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *recorder) Write(b []byte) (int, error) {
	rec.wroteHeader = true
	if rec.capture && rec.jsonResponse() {
		rec.record(b)
	}
	return rec.ResponseWriter.Write(b)
}

func (rec *recorder) record(b []byte) {
	remaining := rec.max - rec.body.Len()
	if remaining <= 0 {
		rec.truncated = true
		return
	}
	if len(b) > remaining {
		b = b[:remaining]
		rec.truncated = true
	}
	rec.body.Write(b)
}

func (rec *recorder) jsonResponse() bool {
	ct := rec.Header().Get("Content-Type")
	return strings.HasPrefix(ct, "application/json")
}

// Flush implements the http.Flusher interface.
func (rec *recorder) Flush() {
	f, ok := rec.ResponseWriter.(http.Flusher)
	if !ok {
		return
	}
	f.Flush()
}

// Unwrap returns the underlying ResponseWriter, enabling
// http.ResponseController to reach the original writer.
func (rec *recorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}
