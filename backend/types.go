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

package backend

import (
	"context"
	"net/http"

	"github.com/nabbar/golib/errors"

	"github/sabouaram/golib/buffering"
	"github/sabouaram/golib/upstream"
)

// Kind tags which of the four variants a Backend carries.
type Kind uint8

const (
	KindProxy Kind = iota
	KindMemoryFile
	KindSendFile
	KindRedirect
)

func (k Kind) String() string {
	switch k {
	case KindProxy:
		return "proxy"
	case KindMemoryFile:
		return "memory_file"
	case KindSendFile:
		return "send_file"
	case KindRedirect:
		return "redirect"
	}
	return "unknown"
}

// Backend is the tagged union a matched route resolves to. Only the field
// matching Kind is populated; Dispatch never inspects the others.
type Backend struct {
	Kind Kind

	Proxy      *ProxyBackend
	MemoryFile *MemoryFileBackend
	SendFile   *SendFileBackend
	Redirect   *RedirectBackend

	// BufferOptions governs how a Proxy or SendFile response body is
	// buffered before it reaches the client writer.
	BufferOptions buffering.Options
}

// ProxyBackend forwards a request to a load-balanced upstream.Group.
type ProxyBackend struct {
	Group *upstream.Group
	// TargetRewrite rewrites the outbound request path; nil leaves it
	// unchanged.
	TargetRewrite func(path string) string
	// Scheme is prefixed onto the selected server's Spec.Address to build
	// the outbound URL ("http" or "https").
	Scheme string
	Client *http.Client
}

// MemoryFileBackend serves a fixed in-process byte slab.
type MemoryFileBackend struct {
	Bytes []byte
	MIME  string
	// ETag, when set, is sent verbatim and honored against If-None-Match.
	ETag string
}

// SendFileBackend serves files from disk under a jailed root.
type SendFileBackend struct {
	BasePath  string
	IsDir     bool
	IndexName string

	PathSecurity PathSecurityConfig
}

// RedirectBackend answers with an HTTP 3xx and a templated Location.
type RedirectBackend struct {
	// URLTemplate supports the $request_uri and $path substitution tokens.
	URLTemplate string
	// StatusCode must be a 3xx redirect status; 0 defaults to 302.
	StatusCode int
	// PreservePath appends the original request path to URLTemplate when it
	// has no $path/$request_uri token of its own.
	PreservePath bool
}

// Dispatch routes to the variant named by b.Kind. It is the single place
// that type-switches on Kind; every variant's own method stays unexported so
// this remains the only entry point.
func Dispatch(ctx context.Context, b *Backend, w http.ResponseWriter, r *http.Request) errors.Error {
	switch b.Kind {
	case KindProxy:
		return dispatchProxy(ctx, b, w, r)
	case KindMemoryFile:
		return dispatchMemoryFile(b, w, r)
	case KindSendFile:
		return dispatchSendFile(ctx, b, w, r)
	case KindRedirect:
		return dispatchRedirect(b, w, r)
	}
	return ErrorUnknownKind.Error()
}
