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
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/nabbar/golib/errors"
)

// WebContentTypePrefix identifies a gRPC-Web request/response.
const WebContentTypePrefix = "application/grpc-web"

// WebTextContentType is the fully base64-encoded gRPC-Web variant used by
// browsers that cannot send binary bodies.
const WebTextContentType = "application/grpc-web-text"

// IsWebContentType reports whether contentType marks a gRPC-Web request.
func IsWebContentType(contentType string) bool {
	return len(contentType) >= len(WebContentTypePrefix) &&
		strings.EqualFold(contentType[:len(WebContentTypePrefix)], WebContentTypePrefix)
}

// IsWebText reports whether contentType is the base64 "-text" variant.
func IsWebText(contentType string) bool {
	return len(contentType) >= len(WebTextContentType) &&
		strings.EqualFold(contentType[:len(WebTextContentType)], WebTextContentType)
}

// WebCORSConfig is the per-route gRPC-Web CORS policy.
type WebCORSConfig struct {
	AllowedOrigins   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultWebCORSConfig permits any origin and exposes the grpc-status and
// grpc-message trailers, the minimum a browser gRPC-Web client needs.
func DefaultWebCORSConfig() WebCORSConfig {
	return WebCORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"content-type", "x-grpc-web", "x-user-agent", "grpc-timeout"},
		ExposedHeaders: []string{"grpc-status", "grpc-message"},
		MaxAge:         24 * time.Hour,
	}
}

func (c WebCORSConfig) allowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// IsOriginAllowed reports whether origin may make a gRPC-Web call under c.
func (c WebCORSConfig) IsOriginAllowed(origin string) bool {
	if c.allowsAnyOrigin() {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// PreflightHeaders builds the response headers for an OPTIONS preflight.
func (c WebCORSConfig) PreflightHeaders(origin string) map[string]string {
	h := map[string]string{}

	if c.IsOriginAllowed(origin) {
		h["access-control-allow-origin"] = c.originHeader(origin)
	}
	h["access-control-allow-methods"] = "POST, OPTIONS"
	h["access-control-allow-headers"] = strings.Join(c.AllowedHeaders, ", ")
	if len(c.ExposedHeaders) > 0 {
		h["access-control-expose-headers"] = strings.Join(c.ExposedHeaders, ", ")
	}
	if c.AllowCredentials {
		h["access-control-allow-credentials"] = "true"
	}
	h["access-control-max-age"] = strconv.FormatInt(int64(c.MaxAge/time.Second), 10)

	return h
}

// ResponseHeaders builds the CORS headers attached to an actual response.
func (c WebCORSConfig) ResponseHeaders(origin string) map[string]string {
	h := map[string]string{}
	if !c.IsOriginAllowed(origin) {
		return h
	}

	h["access-control-allow-origin"] = c.originHeader(origin)
	if len(c.ExposedHeaders) > 0 {
		h["access-control-expose-headers"] = strings.Join(c.ExposedHeaders, ", ")
	}
	if c.AllowCredentials {
		h["access-control-allow-credentials"] = "true"
	}

	return h
}

func (c WebCORSConfig) originHeader(origin string) string {
	if c.allowsAnyOrigin() {
		return "*"
	}
	return origin
}

// DecodeWebBody reverses the base64 wrapper the "-text" content type adds;
// the binary variant passes the body through unchanged.
func DecodeWebBody(body []byte, isText bool) ([]byte, errors.Error) {
	if !isText {
		return body, nil
	}
	out, err := base64.StdEncoding.DecodeString(string(body))
	if err != nil {
		return nil, ErrorInvalidWebBase64.Error(err)
	}
	return out, nil
}

// EncodeWebResponse appends a gRPC-Web trailer frame (flag 0x80, 4-byte
// big-endian length, "name: value\r\n" pairs) to body, base64-wrapping the
// whole thing when isText is set.
func EncodeWebResponse(body []byte, trailers map[string]string, isText bool) []byte {
	var trailerData strings.Builder
	for name, value := range trailers {
		trailerData.WriteString(name)
		trailerData.WriteString(": ")
		trailerData.WriteString(value)
		trailerData.WriteString("\r\n")
	}

	td := []byte(trailerData.String())
	frame := Frame{Data: td}
	header := frame.Encode()[:FrameHeaderSize]
	header[0] = 0x80

	out := make([]byte, 0, len(body)+len(header)+len(td))
	out = append(out, body...)
	out = append(out, header...)
	out = append(out, td...)

	if isText {
		return []byte(base64.StdEncoding.EncodeToString(out))
	}
	return out
}
