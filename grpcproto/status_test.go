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

package grpcproto

import "testing"

func TestCodeFromUint8_RoundTrip(t *testing.T) {
	for c := uint8(0); c <= uint8(Unauthenticated); c++ {
		got, ok := CodeFromUint8(c)
		if !ok {
			t.Fatalf("code %d: expected ok=true", c)
		}
		if uint8(got) != c {
			t.Fatalf("code %d: round-trip mismatch, got %d", c, got)
		}
	}

	for _, bad := range []uint8{17, 18, 200, 255} {
		if _, ok := CodeFromUint8(bad); ok {
			t.Fatalf("byte %d: expected ok=false", bad)
		}
	}
}

func TestFromHTTPStatus_SpotChecks(t *testing.T) {
	cases := map[int]Code{
		200: OK,
		400: InvalidArgument,
		401: Unauthenticated,
		403: PermissionDenied,
		404: NotFound,
		409: Aborted,
		429: ResourceExhausted,
		499: Cancelled,
		500: Internal,
		501: Unimplemented,
		503: Unavailable,
		504: DeadlineExceeded,
		204: OK,
		422: InvalidArgument,
		302: Unknown,
	}

	for status, want := range cases {
		if got := FromHTTPStatus(status); got != want {
			t.Errorf("FromHTTPStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestToHTTPStatus_MatchesTeacherTable(t *testing.T) {
	cases := map[Code]int{
		OK:                 200,
		Cancelled:          499,
		InvalidArgument:    400,
		FailedPrecondition: 400,
		OutOfRange:         400,
		DeadlineExceeded:   504,
		NotFound:           404,
		AlreadyExists:      409,
		Aborted:            409,
		PermissionDenied:   403,
		ResourceExhausted:  429,
		Unimplemented:      501,
		Unavailable:        503,
		Unauthenticated:    401,
		Internal:           500,
		Unknown:            500,
		DataLoss:           500,
	}

	for code, want := range cases {
		if got := code.ToHTTPStatus(); got != want {
			t.Errorf("%v.ToHTTPStatus() = %d, want %d", code, got, want)
		}
	}
}

func TestMessageEncodeDecode_RoundTrip(t *testing.T) {
	for _, msg := range []string{
		"",
		"plain text",
		"upstream timed out after 5s",
		"percent % and newline\n and unicode é",
		"tab\tand\rcarriage",
	} {
		enc := EncodeMessage(msg)
		if got := DecodeMessage(enc); got != msg {
			t.Errorf("round-trip mismatch for %q: encoded %q, decoded %q", msg, enc, got)
		}
	}
}

func TestTrailers_OmitsMessageWhenEmpty(t *testing.T) {
	s := Status{Code: OK}
	tr := s.Trailers()
	if tr["grpc-status"] != "0" {
		t.Fatalf("grpc-status = %q, want 0", tr["grpc-status"])
	}
	if _, ok := tr["grpc-message"]; ok {
		t.Fatalf("expected no grpc-message trailer for empty message")
	}

	s = Status{Code: Internal, Message: "boom"}
	tr = s.Trailers()
	if tr["grpc-message"] != "boom" {
		t.Fatalf("grpc-message = %q, want boom", tr["grpc-message"])
	}
}
