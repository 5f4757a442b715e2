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

import (
	"net/http"
	"strings"
	"time"
)

// ContentTypeProto is the default gRPC content-type for Protobuf payloads.
const ContentTypeProto = "application/grpc+proto"

// ContentTypeJSON is the gRPC content-type for JSON payloads.
const ContentTypeJSON = "application/grpc+json"

const contentTypePrefix = "application/grpc"

// IsGRPCContentType reports whether a content-type value marks a gRPC
// request or response (anything starting with "application/grpc").
func IsGRPCContentType(contentType string) bool {
	return len(contentType) >= len(contentTypePrefix) &&
		strings.EqualFold(contentType[:len(contentTypePrefix)], contentTypePrefix)
}

// IsGRPCRequest reports whether the given header set marks a gRPC request.
func IsGRPCRequest(h http.Header) bool {
	return IsGRPCContentType(h.Get("content-type"))
}

// Headers is the subset of gRPC-specific request metadata a proxy needs to
// inspect before forwarding a call.
type Headers struct {
	Timeout        time.Duration
	HasTimeout     bool
	Encoding       Encoding
	AcceptEncoding []Encoding
	MessageType    string
	Authority      string
	Path           string
}

// FromHTTPHeaders extracts gRPC-specific fields out of an HTTP/2 (or
// HTTP/3) header set.
func FromHTTPHeaders(h http.Header, authority, path string) Headers {
	out := Headers{Authority: authority, Path: path}

	if v := h.Get("grpc-timeout"); v != "" {
		if d, err := ParseTimeout(v); err == nil {
			out.Timeout = d
			out.HasTimeout = true
		}
	}

	if v := h.Get("grpc-encoding"); v != "" {
		if enc, ok := EncodingFromString(v); ok {
			out.Encoding = enc
		}
	}

	if v := h.Get("grpc-accept-encoding"); v != "" {
		for _, part := range strings.Split(v, ",") {
			if enc, ok := EncodingFromString(strings.TrimSpace(part)); ok {
				out.AcceptEncoding = append(out.AcceptEncoding, enc)
			}
		}
	}

	out.MessageType = h.Get("grpc-message-type")

	return out
}

// ServiceName extracts "package.Service" from a "/package.Service/Method"
// gRPC path.
func (h Headers) ServiceName() string {
	p := strings.TrimPrefix(h.Path, "/")
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

// MethodName extracts "Method" from a "/package.Service/Method" gRPC path.
func (h Headers) MethodName() string {
	idx := strings.LastIndex(h.Path, "/")
	if idx < 0 {
		return ""
	}
	return h.Path[idx+1:]
}
