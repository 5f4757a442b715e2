/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package gatewaysrv

import (
	"errors"
	"net"
	"net/http"
)

// denialReason names one of the pipeline's gates, in the order Pipeline
// evaluates them. Each maps to a fixed HTTP status; none of them ever
// reach the backend dispatcher.
type denialReason uint8

const (
	denialNone denialReason = iota
	denialACL
	denialRateLimit
	denialMethod
	denialRouteMiss
)

// statusFor resolves a gate denial to the status code the client sees.
// ACL and method denials are a flat refusal; a rate-limit denial also
// carries Retry-After/X-RateLimit-* headers, set by the caller before this
// status is written. A route miss is treated as a malformed request
// (no route in this table claims to handle it) rather than a 404, matching
// the taxonomy's "routing misses" bucket.
func statusFor(reason denialReason) int {
	switch reason {
	case denialACL:
		return http.StatusForbidden
	case denialRateLimit:
		return http.StatusTooManyRequests
	case denialMethod:
		return http.StatusMethodNotAllowed
	case denialRouteMiss:
		return http.StatusBadRequest
	}
	return http.StatusOK
}

// statusForBackendError maps a backend.Dispatch failure to a response
// status. Proxy/upstream failures (connection refused, dial timeout,
// context deadline) are reported as 502; anything else dispatch can fail
// on (disk read errors, malformed redirect templates) is a 500 — the route
// itself was valid, something about serving it broke.
func statusForBackendError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if isUpstreamError(err) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func isUpstreamError(err error) bool {
	type timeout interface{ Timeout() bool }
	if t, ok := err.(timeout); ok && t.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
