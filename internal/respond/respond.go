// Copyright 2026 The Chimney Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package respond streams a resolved file to the client with the
// headers described in spec.md §4.5. It never buffers an entire file
// in memory.
package respond

import (
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/aosasona/chimney/internal/chimneyconfig"
)

// File streams the file at absolutePath to w, with the given media
// type, in the header order required by spec.md §4.5: Content-Type,
// Content-Length, server extra headers, then site extra headers
// (site overrides server on a name collision). HEAD requests
// (method == http.MethodHead) write headers only.
func File(w http.ResponseWriter, method, absolutePath, mediaType string, status int, server, site chimneyconfig.OrderedHeaders) error {
	f, err := os.Open(absolutePath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	ApplyExtraHeaders(w, server, site)
	w.WriteHeader(status)

	if method == http.MethodHead {
		return nil
	}

	_, err = io.Copy(w, f)
	return err
}

// ApplyExtraHeaders writes server-level extra headers first, then
// site-level extra headers, so that a site-level name overrides the
// server-level value for the same header name (spec.md §4.5). Both
// are applied in their stable, name-sorted order.
func ApplyExtraHeaders(w http.ResponseWriter, server, site chimneyconfig.OrderedHeaders) {
	for _, name := range server.Names() {
		w.Header().Set(name, server.Value(name))
	}
	for _, name := range site.Names() {
		w.Header().Set(name, site.Value(name))
	}
}

// MethodNotAllowed writes the 405 response required for any method
// other than GET/HEAD (spec.md §4.5, §7).
func MethodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Allow", "GET, HEAD")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_, _ = io.WriteString(w, "405 method not allowed\n")
}

// Forbidden writes the single-line 403 body required when path
// safety rejects a request (spec.md §7).
func Forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = io.WriteString(w, "403 forbidden\n")
}

// NotFound writes an empty 404 body (spec.md §7: a fallback body is
// only emitted when the resolver actually served the configured
// fallback file via ActionServeFile; a true NotFound carries no
// body).
func NotFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
}

// MisdirectedRequest writes the 421 response for a host that matched
// no site and no wildcard (spec.md §4.3).
func MisdirectedRequest(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(421)
	_, _ = io.WriteString(w, "421 misdirected request\n")
}

// BadRequest writes the 400 response for a request with no Host
// header on HTTP/1.1 (spec.md §8 boundary behavior).
func BadRequest(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = io.WriteString(w, "400 bad request\n")
}
