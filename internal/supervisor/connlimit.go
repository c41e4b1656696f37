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

package supervisor

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
)

type connRequestCounterKey struct{}

// connContext attaches a fresh per-connection request counter,
// satisfying http.Server.ConnContext. Each accepted connection gets
// its own counter so keep-alive requests on that connection can be
// bounded independently of every other connection (spec.md §4.9:
// "bounded by ... max-requests (default 256)").
func connContext(ctx context.Context, _ net.Conn) context.Context {
	return context.WithValue(ctx, connRequestCounterKey{}, new(atomic.Int64))
}

// limitRequestsPerConn wraps next so that once a connection has
// served maxRequestsPerConn requests, the response is marked
// Connection: close, causing net/http to tear the connection down
// after this response instead of keeping it alive for another
// request (spec.md §4.9 keep-alive bound).
func limitRequestsPerConn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if counter, ok := r.Context().Value(connRequestCounterKey{}).(*atomic.Int64); ok {
			if counter.Add(1) >= maxRequestsPerConn {
				w.Header().Set("Connection", "close")
			}
		}
		next.ServeHTTP(w, r)
	})
}
