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
	"fmt"
	"net"
	"net/http"
	"testing"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		reason denialReason
		want   int
	}{
		{denialNone, http.StatusOK},
		{denialACL, http.StatusForbidden},
		{denialRateLimit, http.StatusTooManyRequests},
		{denialMethod, http.StatusMethodNotAllowed},
		{denialRouteMiss, http.StatusBadRequest},
	}

	for _, c := range cases {
		if got := statusFor(c.reason); got != c.want {
			t.Errorf("statusFor(%v) = %d, want %d", c.reason, got, c.want)
		}
	}
}

func TestStatusForBackendError(t *testing.T) {
	if got := statusForBackendError(nil); got != http.StatusOK {
		t.Fatalf("nil error: got %d, want 200", got)
	}

	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")}
	if got := statusForBackendError(opErr); got != http.StatusBadGateway {
		t.Errorf("net.OpError: got %d, want 502", got)
	}

	dnsErr := &net.DNSError{Err: "no such host", Name: "example.invalid"}
	if got := statusForBackendError(dnsErr); got != http.StatusBadGateway {
		t.Errorf("net.DNSError: got %d, want 502", got)
	}

	wrapped := fmt.Errorf("dispatch failed: %w", opErr)
	if got := statusForBackendError(wrapped); got != http.StatusBadGateway {
		t.Errorf("wrapped net.OpError: got %d, want 502", got)
	}

	if got := statusForBackendError(errors.New("disk read failed")); got != http.StatusInternalServerError {
		t.Errorf("generic error: got %d, want 500", got)
	}
}

func TestDenialReasonString(t *testing.T) {
	cases := map[denialReason]string{
		denialNone:      "none",
		denialACL:       "acl",
		denialRateLimit: "rate_limit",
		denialMethod:    "method",
		denialRouteMiss: "route_miss",
	}
	for reason, want := range cases {
		if got := reason.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", reason, got, want)
		}
	}
}
