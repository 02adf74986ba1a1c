// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package observe provides the request/response middleware attached to
// every inbound request: a response observer which logs the final status
// and JSON body of each request without altering what is sent to the
// client, along with small request-id, security-header and panic
// recovery wrappers.
package observe

import (
	"encoding/json"
	"net/http"
)

// WriteMessage writes a generic JSON error body of the form
// {"message": <msg>} with the given status code. Internal detail never
// reaches the client; it belongs in the server-side log.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
